package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/udooneo/neo/hardware/gpio"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateGPIO(cfg, ve)
	validateServer(cfg, ve)
	validateStore(cfg, ve)
	validateLogger(cfg, ve)
	validateHardware(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateGPIO(cfg *Config, ve *ValidationError) {
	if cfg.GPIO.SysfsRoot == "" {
		ve.Add("gpio.sysfs_root must not be empty")
	}
	if len(cfg.GPIO.Lines) == 0 {
		ve.Add("gpio.lines must not be empty")
	}
	for i, line := range cfg.GPIO.Lines {
		if line < 0 {
			ve.Add("gpio.lines[%d] must be >= 0", i)
		}
	}
	if cfg.GPIO.DefaultPeriod < 1 || cfg.GPIO.DefaultPeriod > gpio.MaxPeriod {
		ve.Add("gpio.default_period must be between 1 and %d", gpio.MaxPeriod)
	}
}

func validateServer(cfg *Config, ve *ValidationError) {
	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not host:port", cfg.Server.Addr)
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Path == "" {
		ve.Add("store.path must not be empty")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if _, err := logrus.ParseLevel(cfg.Logger.Level); err != nil {
		ve.Add("logger.level %q is not a log level", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format must be text or json")
	}
}

func validateHardware(cfg *Config, ve *ValidationError) {
	neo := cfg.Hardware.Neo
	if neo == nil {
		return
	}

	pins := len(cfg.GPIO.Lines)
	check := func(name string, pin int) {
		if pin < 0 || pin >= pins {
			ve.Add("hardware.neo.%s pin %d must be between 0 and %d", name, pin, pins-1)
		}
	}

	for _, pin := range neo.LightPins {
		check("light_pins", pin)
	}
	if neo.ReadyPin != nil {
		check("ready_pin", *neo.ReadyPin)
	}
	if neo.FaultPin != nil {
		check("fault_pin", *neo.FaultPin)
	}
	if neo.PWMPeriod < 0 || neo.PWMPeriod > gpio.MaxPeriod {
		ve.Add("hardware.neo.pwm_period must be between 0 and %d", gpio.MaxPeriod)
	}
}
