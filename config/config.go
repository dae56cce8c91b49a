// Package config loads the neo daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
)

// Config is the root configuration.
type Config struct {
	GPIO     GPIOConfig      `yaml:"gpio"`
	Server   ServerConfig    `yaml:"server"`
	Store    StoreConfig     `yaml:"store"`
	Logger   LoggerConfig    `yaml:"logger"`
	Hardware hardware.Config `yaml:"hardware"`
}

// GPIOConfig configures the pin engine.
type GPIOConfig struct {
	// SysfsRoot is where the sysfs GPIO interface lives
	SysfsRoot string `yaml:"sysfs_root"`

	// Lines maps every pin to its kernel GPIO line. Pins are numbered by their
	// index in the list.
	Lines []int `yaml:"lines"`

	// DefaultPeriod is the software PWM period in microseconds used when a
	// request doesn't name one
	DefaultPeriod int `yaml:"default_period"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DefaultNeoLines is the pin to line map of the UDOO Neo headers. Some lines
// are reachable from two header pins.
var DefaultNeoLines = []int{
	178, 179, 104, 143, 142, 141, 140,
	149, 105, 148, 146, 147, 100, 102,
	102, 106, 106, 107, 180, 181, 172,
	173, 182, 124, 25, 22, 14, 15, 16,
	17, 18, 19, 20, 21, 203, 202, 177,
	176, 175, 174, 119, 124, 127, 116,
	7, 6, 5, 4,
}

// Defaults returns a Config with every field set to its default.
func Defaults() *Config {
	return &Config{
		GPIO: GPIOConfig{
			SysfsRoot:     gpio.DefaultSysfsRoot,
			Lines:         append([]int(nil), DefaultNeoLines...),
			DefaultPeriod: gpio.DefaultPeriod,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path: "neo.db",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file over the defaults, applies env var overrides
// and validates the result. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps NEO_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEO_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NEO_STORE"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("NEO_SYSFS_ROOT"); v != "" {
		cfg.GPIO.SysfsRoot = v
	}
	if v := os.Getenv("NEO_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}
