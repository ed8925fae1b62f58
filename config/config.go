// Package config loads the daemon settings from a YAML file. Each
// section is read into a struct seeded from its Default constructor,
// so values missing from the file keep their defaults and a missing
// file is equivalent to an all-default configuration.
package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is where the daemon looks for usb-meter.yaml
	// unless told otherwise.
	DefaultConfigDir = "/etc/usb-meter"

	configName = "usb-meter"
	configType = "yaml"
)

// Section keys.
const (
	DeviceKey  = "device"
	LoggerKey  = "logger"
	DisplayKey = "display"
	ReportKey  = "report"
)

// Device controls how the USB meter is polled.
type Device struct {
	PollInterval      time.Duration `mapstructure:"poll-interval"`
	KeepAliveInterval time.Duration `mapstructure:"keep-alive-interval"`
	ReadTimeout       time.Duration `mapstructure:"read-timeout"`
}

func DefaultDevice() Device {
	return Device{
		PollInterval:      time.Second,
		KeepAliveInterval: time.Second,
		ReadTimeout:       time.Second,
	}
}

// Logger controls where session logs are written and what happens to
// a log when its session ends.
type Logger struct {
	OutputDir     string `mapstructure:"output-dir"`
	ReportOnReset bool   `mapstructure:"report-on-reset"`
	ReporterBin   string `mapstructure:"reporter-bin"`
}

func DefaultLogger() Logger {
	return Logger{
		OutputDir:     "/var/log/usb-meter",
		ReportOnReset: true,
		ReporterBin:   "usb-meter-report",
	}
}

// Display controls the live telemetry channels.
type Display struct {
	Smoothing string `mapstructure:"smoothing"`
}

func DefaultDisplay() Display {
	return Display{
		Smoothing: "F4",
	}
}

// Report seeds the header fields of generated reports.
type Report struct {
	Author   string `mapstructure:"author"`
	TestType string `mapstructure:"test-type"`
}

func DefaultReport() Report {
	return Report{
		Author:   "Dylan",
		TestType: "Discharge Test",
	}
}

// Config reads sections of the daemon configuration file.
type Config struct {
	mu sync.Mutex
	v  *viper.Viper
}

// New loads the configuration file from dir. A missing file is not an
// error, the defaults cover a fresh install.
func New(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	if err := readConfig(v); err != nil {
		return nil, err
	}
	return &Config{v: v}, nil
}

func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return err
}

// Unmarshal overlays the named section of the file onto raw.
func (c *Config) Unmarshal(key string, raw interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v.UnmarshalKey(key, raw)
}

// Reload rereads the configuration file.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return readConfig(c.v)
}
