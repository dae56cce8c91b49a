package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "neo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultsPassValidation(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
	assert.Len(t, DefaultNeoLines, 47)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
gpio:
  sysfs_root: /tmp/gpio
  lines: [10, 11, 12]
server:
  addr: 127.0.0.1:9000
logger:
  level: debug
  format: json
hardware:
  neo:
    light_pins: [0, 1]
    ready_pin: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/gpio", cfg.GPIO.SysfsRoot)
	assert.Equal(t, []int{10, 11, 12}, cfg.GPIO.Lines)
	assert.Equal(t, gpio.DefaultPeriod, cfg.GPIO.DefaultPeriod, "unset fields keep their default")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "neo.db", cfg.Store.Path)
	assert.Equal(t, "json", cfg.Logger.Format)

	require.NotNil(t, cfg.Hardware.Neo)
	assert.Equal(t, []int{0, 1}, cfg.Hardware.Neo.LightPins)
	require.NotNil(t, cfg.Hardware.Neo.ReadyPin)
	assert.Equal(t, 2, *cfg.Hardware.Neo.ReadyPin)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "gpio: [unterminated"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEO_ADDR", ":9999")
	t.Setenv("NEO_STORE", "/var/lib/neo.db")

	cfg, err := Load(writeConfig(t, "server:\n  addr: \":1234\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/neo.db", cfg.Store.Path)
}

func TestValidate(t *testing.T) {
	seven := 7

	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"empty lines", func(c *Config) { c.GPIO.Lines = nil }, "gpio.lines must not be empty"},
		{"negative line", func(c *Config) { c.GPIO.Lines = []int{3, -1} }, "gpio.lines[1] must be >= 0"},
		{"no sysfs root", func(c *Config) { c.GPIO.SysfsRoot = "" }, "gpio.sysfs_root must not be empty"},
		{"zero period", func(c *Config) { c.GPIO.DefaultPeriod = 0 }, "gpio.default_period must be between"},
		{"long period", func(c *Config) { c.GPIO.DefaultPeriod = gpio.MaxPeriod + 1 }, "gpio.default_period must be between"},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"no store", func(c *Config) { c.Store.Path = "" }, "store.path must not be empty"},
		{"bad level", func(c *Config) { c.Logger.Level = "loud" }, "logger.level"},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format must be text or json"},
		{"light out of range", func(c *Config) {
			c.GPIO.Lines = []int{1, 2}
			c.Hardware.Neo = &hardware.NeoConfig{LightPins: []int{2}}
		}, "hardware.neo.light_pins pin 2"},
		{"ready out of range", func(c *Config) {
			c.GPIO.Lines = []int{1, 2}
			c.Hardware.Neo = &hardware.NeoConfig{ReadyPin: &seven}
		}, "hardware.neo.ready_pin pin 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(LoggerConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("dropped")
	logger.WithField("pin", 3).Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"pin":3`)

	_, err = NewLogger(LoggerConfig{Level: "nope"}, &buf)
	assert.Error(t, err)

	_, err = NewLogger(LoggerConfig{Level: "info", Format: "xml"}, &buf)
	assert.Error(t, err)
}
