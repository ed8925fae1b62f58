/*
usb-meter-report - Generates PDF reports from USB meter session logs
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
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/PowerMeterProject/usb-meter-logger/config"
	"github.com/PowerMeterProject/usb-meter-logger/report"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	Input     string `arg:"positional,required" help:"Session log (CSV) to report on"`
	Output    string `arg:"-o,--output" help:"Where to write the PDF, defaults to the log path with a _report.pdf suffix"`
	Title     string `arg:"-t,--title" help:"Report title, prompted for when not given"`
	Author    string `arg:"--author" help:"Report author, defaults to the configured one"`
	TestType  string `arg:"--test-type" help:"Test type line, defaults to the configured one"`
	ConfigDir string `arg:"-c,--config" help:"Path to configuration directory"`
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

	conf, err := config.New(args.ConfigDir)
	if err != nil {
		return err
	}
	reportConf := config.DefaultReport()
	if err := conf.Unmarshal(config.ReportKey, &reportConf); err != nil {
		return err
	}
	if args.Author == "" {
		args.Author = reportConf.Author
	}
	if args.TestType == "" {
		args.TestType = reportConf.TestType
	}

	title := args.Title
	if title == "" {
		title = promptTitle()
	}

	cols, err := report.Load(args.Input)
	if err != nil {
		return err
	}
	summary, err := report.Summarize(cols)
	if err != nil {
		return err
	}

	out := args.Output
	if out == "" {
		out = report.OutputPath(args.Input)
	}
	meta := report.Meta{
		Title:     title,
		Author:    args.Author,
		TestType:  args.TestType,
		Generated: time.Now(),
	}
	if err := report.Render(cols, summary, meta, out); err != nil {
		return err
	}
	log.Info("Report generated: ", out)
	return nil
}

// promptTitle asks for a title when running interactively. Reports
// generated by the daemon take the default.
func promptTitle() string {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return report.DefaultTitle
	}
	fmt.Printf("Report title [%s]: ", report.DefaultTitle)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return report.DefaultTitle
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return report.DefaultTitle
	}
	return line
}
