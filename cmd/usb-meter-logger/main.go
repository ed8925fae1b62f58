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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/PowerMeterProject/usb-meter-logger/config"
	"github.com/PowerMeterProject/usb-meter-logger/display"
	"github.com/PowerMeterProject/usb-meter-logger/meter"
	"github.com/PowerMeterProject/usb-meter-logger/session"
	"github.com/PowerMeterProject/usb-meter-logger/usbhid"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	ConfigDir string `arg:"-c,--config" help:"Path to configuration directory"`
	OutputDir string `arg:"-o,--output-dir" help:"Write session logs here instead of the configured directory"`
	NoReport  bool   `arg:"--no-report" help:"Do not generate a report when a session ends"`
	LogLevel  string `arg:"-l, --log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{
		ConfigDir: config.DefaultConfigDir,
	}
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("[%s] %s\n", strings.ToUpper(entry.Level.String()), entry.Message)), nil
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err.Error())
	}
}

func runMain() error {
	log.SetFormatter(new(customFormatter))
	args := procArgs()
	setLogLevel(args.LogLevel)

	log.Info("Running version: ", version)

	conf, err := config.New(args.ConfigDir)
	if err != nil {
		return err
	}
	deviceConf := config.DefaultDevice()
	if err := conf.Unmarshal(config.DeviceKey, &deviceConf); err != nil {
		return err
	}
	loggerConf := config.DefaultLogger()
	if err := conf.Unmarshal(config.LoggerKey, &loggerConf); err != nil {
		return err
	}
	displayConf := config.DefaultDisplay()
	if err := conf.Unmarshal(config.DisplayKey, &displayConf); err != nil {
		return err
	}
	if args.OutputDir != "" {
		loggerConf.OutputDir = args.OutputDir
	}
	if args.NoReport {
		loggerConf.ReportOnReset = false
	}

	smoothing := displayConf.Smoothing
	if _, ok := display.Windows[smoothing]; !ok {
		log.Warnf("Unknown smoothing setting %q, using %s", smoothing, display.DefaultWindow)
		smoothing = display.DefaultWindow
	}

	recorder, err := session.NewRecorder(loggerConf.OutputDir, nil)
	if err != nil {
		return err
	}
	log.Info("Logging to ", recorder.Path())

	dev, err := usbhid.Open(deviceConf.ReadTimeout)
	if err != nil {
		return err
	}
	defer dev.Close()

	m := &usbMeter{
		dev:         dev,
		recorder:    recorder,
		channels:    display.NewChannels(nil),
		smoothing:   smoothing,
		reportOnEnd: loggerConf.ReportOnReset,
		reporterBin: loggerConf.ReporterBin,
	}

	if err := startService(m); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	pollTicker := time.NewTicker(deviceConf.PollInterval)
	defer pollTicker.Stop()
	keepAliveTicker := time.NewTicker(deviceConf.KeepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			reading, err := m.dev.Poll(context.Background())
			if errors.Is(err, meter.ErrBadPacket) {
				continue
			}
			if err != nil {
				log.Error("USB poll error: ", err)
				continue
			}
			if err := m.record(reading); err != nil {
				log.Error("Recording sample: ", err)
			}
		case <-keepAliveTicker.C:
			if err := m.dev.SendKeepAlive(); err != nil {
				log.Error("USB keepalive error: ", err)
			}
		case sig := <-sigs:
			log.Infof("Caught signal %v, shutting down", sig)
			m.shutdown()
			return nil
		}
	}
}
