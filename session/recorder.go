// Package session owns the logging side of a metering run: the charge
// accumulators and the CSV file they are written to.
package session

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/PowerMeterProject/usb-meter-logger/meter"
)

// Header is the fixed column set of every session log.
var Header = []string{
	"Timestamp (s)",
	"Voltage (V)",
	"Current (A)",
	"Power (W)",
	"Temperature (C)",
	"DP (V)",
	"DN (V)",
	"mAh",
}

const (
	filePrefix     = "USB_Meter_Log_"
	fileTimeLayout = "20060102_150405"
)

// Sample is one recorded telemetry row.
type Sample struct {
	Elapsed float64
	meter.Reading
	MAh float64
}

// Recorder owns one logging session: the open CSV file and the charge
// accumulators. Not safe for concurrent use.
type Recorder struct {
	dir   string
	file  *os.File
	w     *csv.Writer
	start time.Time
	last  time.Time
	mAh   float64
	now   func() time.Time
}

// NewRecorder opens a fresh timestamped log in dir, creating dir if
// needed. A nil clock means time.Now.
func NewRecorder(dir string, clock func() time.Time) (*Recorder, error) {
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	r := &Recorder{dir: dir, now: clock}
	if err := r.openLog(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) openLog() error {
	now := r.now()
	name := filePrefix + now.Format(fileTimeLayout) + ".csv"
	file, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	if err := w.Write(Header); err != nil {
		file.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.w = w
	r.start = now
	r.last = now
	r.mAh = 0
	return nil
}

// Path returns the current log file's path.
func (r *Recorder) Path() string {
	if r.file == nil {
		return ""
	}
	return r.file.Name()
}

// MAh returns the charge delivered so far this session.
func (r *Recorder) MAh() float64 {
	return r.mAh
}

// Record integrates reading into the session accumulators and appends
// one CSV row. Integration is rectangular over the wall-clock interval
// since the previous sample, so accuracy tracks the poll cadence.
func (r *Recorder) Record(reading meter.Reading) (Sample, error) {
	now := r.now()
	deltaHours := now.Sub(r.last).Hours()
	r.mAh += reading.Current * 1000 * deltaHours
	r.last = now

	s := Sample{
		Elapsed: now.Sub(r.start).Seconds(),
		Reading: reading,
		MAh:     r.mAh,
	}

	row := []string{
		strconv.FormatFloat(s.Elapsed, 'f', 2, 64),
		formatValue(s.Voltage),
		formatValue(s.Current),
		formatValue(s.Power),
		formatValue(s.Temperature),
		formatValue(s.DP),
		formatValue(s.DN),
		formatValue(s.MAh),
	}
	if err := r.w.Write(row); err != nil {
		return Sample{}, err
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return Sample{}, err
	}
	return s, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Reset closes the current log and opens a new one with zeroed
// accumulators and a fresh timestamp. It returns the closed file's
// path so the caller can hand it to the reporter. The device session
// is untouched.
func (r *Recorder) Reset() (string, error) {
	closed, err := r.Close()
	if err != nil {
		return closed, err
	}
	return closed, r.openLog()
}

// Close flushes and closes the current log, returning its path.
func (r *Recorder) Close() (string, error) {
	if r.file == nil {
		return "", nil
	}
	path := r.file.Name()
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.file.Close()
		r.file = nil
		return path, err
	}
	err := r.file.Close()
	r.file = nil
	return path, err
}
