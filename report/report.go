// Package report turns a completed session CSV into summary
// statistics and a one-page PDF document.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Column names required of every input log.
const (
	ColTimestamp   = "Timestamp (s)"
	ColVoltage     = "Voltage (V)"
	ColCurrent     = "Current (A)"
	ColPower       = "Power (W)"
	ColTemperature = "Temperature (C)"
	ColMAh         = "mAh"
)

var requiredColumns = []string{
	ColTimestamp,
	ColVoltage,
	ColCurrent,
	ColPower,
	ColTemperature,
	ColMAh,
}

// Thresholds marking the first sample where the load is really
// drawing power. Idle rows before that are excluded from statistics.
const (
	startVoltageMin = 0.1
	startCurrentMin = 0.01
)

// ErrNoStart means the log never shows a live load, so there is
// nothing to report on.
var ErrNoStart = errors.New("no sample with voltage above 0.1 V and current above 0.01 A")

// Columns is a session log parsed into float series keyed by header
// name.
type Columns map[string][]float64

// Load reads a session CSV into columns. Header names must be unique,
// every cell must parse as a float and every required column must be
// present. All returned columns have the same length.
func Load(path string) (Columns, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
	}
	cols := make(Columns, len(header))
	row := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++
		for i, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", row, header[i], err)
			}
			cols[header[i]] = append(cols[header[i]], v)
		}
	}

	for _, name := range requiredColumns {
		if len(cols[name]) == 0 {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return cols, nil
}

// StartIndex finds the first sample past the idle lead-in.
func StartIndex(voltage, current []float64) (int, error) {
	for i, v := range voltage {
		if v > startVoltageMin && current[i] > startCurrentMin {
			return i, nil
		}
	}
	return 0, ErrNoStart
}

// Summary holds the report statistics, computed from the detected
// start sample to the end of the log.
type Summary struct {
	StartIndex int
	Duration   float64

	StartVoltage, EndVoltage float64
	StartCurrent, EndCurrent float64
	StartTemp, EndTemp       float64

	TotalMAh float64

	AvgVoltage, AvgCurrent, AvgPower, AvgTemp float64

	MinCurrent, MaxCurrent float64
	MinPower, MaxPower     float64
}

// Summarize computes the report statistics over cols. A temperature
// column full of NaN sentinels leaves the temperature averages NaN,
// which the rendered report shows as-is.
func Summarize(cols Columns) (Summary, error) {
	ts := cols[ColTimestamp]
	voltage := cols[ColVoltage]
	current := cols[ColCurrent]
	power := cols[ColPower]
	temp := cols[ColTemperature]
	mAh := cols[ColMAh]

	start, err := StartIndex(voltage, current)
	if err != nil {
		return Summary{}, err
	}
	last := len(ts) - 1

	return Summary{
		StartIndex:   start,
		Duration:     ts[last] - ts[start],
		StartVoltage: voltage[start],
		EndVoltage:   voltage[last],
		StartCurrent: current[start],
		EndCurrent:   current[last],
		StartTemp:    temp[start],
		EndTemp:      temp[last],
		TotalMAh:     mAh[last] - mAh[start],
		AvgVoltage:   stat.Mean(voltage[start:], nil),
		AvgCurrent:   stat.Mean(current[start:], nil),
		AvgPower:     stat.Mean(power[start:], nil),
		AvgTemp:      stat.Mean(temp[start:], nil),
		MinCurrent:   floats.Min(current[start:]),
		MaxCurrent:   floats.Max(current[start:]),
		MinPower:     floats.Min(power[start:]),
		MaxPower:     floats.Max(power[start:]),
	}, nil
}

// DefaultTitle is used when the operator supplies none.
const DefaultTitle = "USB Power Bank Test Report"

// Meta carries the operator-supplied report fields.
type Meta struct {
	Title     string
	Author    string
	TestType  string
	Generated time.Time
}

// Text renders the summary block that fills the left side of the
// report page.
func Text(s Summary, m Meta) string {
	title := m.Title
	if title == "" {
		title = DefaultTitle
	}
	lines := []string{
		title,
		"Prepared by: " + m.Author,
		"Date Generated: " + m.Generated.Format("2006-01-02 15:04:05"),
		"Test Type: " + m.TestType,
		"",
		"--- Summary ---",
		fmt.Sprintf("Duration: %.2f seconds", s.Duration),
		fmt.Sprintf("Starting Voltage: %.4f V", s.StartVoltage),
		fmt.Sprintf("Ending Voltage: %.4f V", s.EndVoltage),
		fmt.Sprintf("Starting Current: %.4f A", s.StartCurrent),
		fmt.Sprintf("Ending Current: %.4f A", s.EndCurrent),
		fmt.Sprintf("Starting Temperature: %.2f °C", s.StartTemp),
		fmt.Sprintf("Ending Temperature: %.2f °C", s.EndTemp),
		fmt.Sprintf("Total Delivered Capacity: %.3f mAh", s.TotalMAh),
		"",
		"--- Averages ---",
		fmt.Sprintf("Average Voltage: %.4f V", s.AvgVoltage),
		fmt.Sprintf("Average Current: %.4f A", s.AvgCurrent),
		fmt.Sprintf("Average Power: %.4f W", s.AvgPower),
		fmt.Sprintf("Average Temperature: %.2f °C", s.AvgTemp),
		"",
		"--- Extremes ---",
		fmt.Sprintf("Current Min/Max: %.4f / %.4f A", s.MinCurrent, s.MaxCurrent),
		fmt.Sprintf("Power Min/Max: %.4f / %.4f W", s.MinPower, s.MaxPower),
	}
	return strings.Join(lines, "\n")
}

// OutputPath derives the report path from the log path.
func OutputPath(logPath string) string {
	return strings.TrimSuffix(logPath, ".csv") + "_report.pdf"
}
