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
	"encoding/json"
	"errors"
	"math"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
)

const (
	dbusName = "org.powermeter.UsbMeter"
	dbusPath = "/org/powermeter/UsbMeter"
)

var errNoSamples = errors.New("no samples yet")

type service struct {
	meter *usbMeter
}

func startService(m *usbMeter) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		meter: m,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

type statusReply struct {
	Elapsed     float64  `json:"elapsed"`
	Voltage     float64  `json:"voltage"`
	Current     float64  `json:"current"`
	Power       float64  `json:"power"`
	Temperature *float64 `json:"temperature"`
	DP          float64  `json:"dp"`
	DN          float64  `json:"dn"`
	MAh         float64  `json:"mAh"`
	LogFile     string   `json:"logFile"`
	Smoothing   string   `json:"smoothing"`
}

// Status returns the latest sample as JSON. Temperature is null while
// the probe reading is out of range.
func (s service) Status() (string, *dbus.Error) {
	sample, path, ok := s.meter.status()
	if !ok {
		return "", makeDbusError(".Status", errNoSamples)
	}
	reply := statusReply{
		Elapsed:   sample.Elapsed,
		Voltage:   sample.Voltage,
		Current:   sample.Current,
		Power:     sample.Power,
		DP:        sample.DP,
		DN:        sample.DN,
		MAh:       sample.MAh,
		LogFile:   path,
		Smoothing: s.meter.smoothingLabel(),
	}
	if !math.IsNaN(sample.Temperature) {
		t := sample.Temperature
		reply.Temperature = &t
	}
	out, err := json.Marshal(reply)
	if err != nil {
		return "", makeDbusError(".Status", err)
	}
	return string(out), nil
}

// Series returns the live buffer of one telemetry channel as x and y
// values. Channel is one of voltage, current, power or temperature.
func (s service) Series(channel string) ([]float64, []float64, *dbus.Error) {
	xs, ys, err := s.meter.series(channel)
	if err != nil {
		return nil, nil, makeDbusError(".Series", err)
	}
	return xs, ys, nil
}

// SmoothedSeries is Series with the selected smoothing applied. The y
// values are empty while the buffer is shorter than the window.
func (s service) SmoothedSeries(channel string) ([]float64, []float64, *dbus.Error) {
	xs, ys, err := s.meter.smoothedSeries(channel)
	if err != nil {
		return nil, nil, makeDbusError(".SmoothedSeries", err)
	}
	return xs, ys, nil
}

// SetSmoothing selects the smoothing window: None, F2, F4, F8 or F16.
func (s service) SetSmoothing(setting string) *dbus.Error {
	if err := s.meter.setSmoothing(setting); err != nil {
		return makeDbusError(".SetSmoothing", err)
	}
	return nil
}

func (s service) Smoothing() (string, *dbus.Error) {
	return s.meter.smoothingLabel(), nil
}

// ResetSession closes the current log, generates its report and
// starts a fresh session. Returns the path of the closed log.
func (s service) ResetSession() (string, *dbus.Error) {
	path, err := s.meter.resetSession()
	if err != nil {
		return "", makeDbusError(".ResetSession", err)
	}
	return path, nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + name,
		Body: []interface{}{err.Error()},
	}
}
