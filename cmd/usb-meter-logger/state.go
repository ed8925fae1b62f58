/*
usb-meter-logger - Logs and serves telemetry from a USB power meter
Copyright (C) 2025, The Power Meter Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/PowerMeterProject/usb-meter-logger/display"
	"github.com/PowerMeterProject/usb-meter-logger/meter"
	"github.com/PowerMeterProject/usb-meter-logger/session"
	"github.com/PowerMeterProject/usb-meter-logger/usbhid"
)

// usbMeter holds everything the poll loop and the D-Bus service
// share. All access to the mutable parts goes through the mutex.
type usbMeter struct {
	mu sync.Mutex

	dev       *usbhid.Session
	recorder  *session.Recorder
	channels  *display.Channels
	smoothing string

	latest     session.Sample
	haveSample bool

	reportOnEnd bool
	reporterBin string
}

func (m *usbMeter) record(reading meter.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sample, err := m.recorder.Record(reading)
	if err != nil {
		return err
	}
	m.channels.Add(reading)
	m.latest = sample
	m.haveSample = true
	log.Debugf("%.2fs %.5fV %.5fA %.5fW", sample.Elapsed, reading.Voltage, reading.Current, reading.Power)
	return nil
}

// resetSession closes out the current log, reports on it and starts a
// fresh one. The display clock restarts from zero. Returns the path
// of the closed log.
func (m *usbMeter) resetSession() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	closed, err := m.recorder.Reset()
	if err != nil {
		return "", err
	}
	m.channels.Restart()
	m.latest = session.Sample{}
	m.haveSample = false
	m.runReporter(closed)
	log.Info("Session reset, logging to ", m.recorder.Path())
	return closed, nil
}

func (m *usbMeter) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	closed, err := m.recorder.Close()
	if err != nil {
		log.Error("Closing log: ", err)
		return
	}
	m.runReporter(closed)
}

// runReporter generates a report for a closed log in a child process
// so a plotting failure cannot take the daemon down with it.
func (m *usbMeter) runReporter(path string) {
	if !m.reportOnEnd || path == "" {
		return
	}
	bin, err := exec.LookPath(m.reporterBin)
	if err != nil {
		log.Warnf("%s not found, skipping report for %s", m.reporterBin, path)
		return
	}
	if err := exec.Command(bin, path).Run(); err != nil {
		log.Errorf("Generating report for %s: %v", path, err)
	}
}

func (m *usbMeter) setSmoothing(label string) error {
	if _, ok := display.Windows[label]; !ok {
		return fmt.Errorf("unknown smoothing setting %q", label)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.smoothing = label
	return nil
}

func (m *usbMeter) smoothingLabel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.smoothing
}

func (m *usbMeter) series(channel string) ([]float64, []float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels.Series(channel)
}

func (m *usbMeter) smoothedSeries(channel string) ([]float64, []float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels.Smoothed(channel, display.Windows[m.smoothing])
}

func (m *usbMeter) status() (session.Sample, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.recorder.Path(), m.haveSample
}
