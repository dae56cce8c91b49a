package hardware

import (
	"fmt"
	"math"

	"github.com/udooneo/neo/hardware/gpio"
)

// New builds the hardware selected by config on top of g.
func New(g gpio.GPIO, config Config) (Hardware, error) {
	switch {
	case config.Neo != nil:
		return NewNeo(g, *config.Neo)
	default:
		return nil, ErrNoHardware
	}
}

// NeoConfig describes what is wired to the pins of a UDOO Neo. Pins are
// engine pin indexes, not kernel line numbers.
type NeoConfig struct {
	// LightPins drive the light, all at the same level or duty cycle
	LightPins []int `json:"lightPins" yaml:"light_pins"`

	// ReadyPin and FaultPin drive the status LEDs, if fitted
	ReadyPin *int `json:"readyPin,omitempty" yaml:"ready_pin,omitempty"`
	FaultPin *int `json:"faultPin,omitempty" yaml:"fault_pin,omitempty"`

	// PWMPeriod is the software PWM period used for dimming, in microseconds.
	// Zero picks gpio.DefaultPeriod.
	PWMPeriod int `json:"pwmPeriod,omitempty" yaml:"pwm_period,omitempty"`
}

type Neo struct {
	gpio      gpio.GPIO
	lights    []int
	ready     *int
	fault     *int
	pwmPeriod int
}

// compile-time checks for the optional interfaces Neo implements
var (
	_ BinaryLight      = &Neo{}
	_ DimmableLight    = &Neo{}
	_ StatusIndicators = &Neo{}
)

// NewNeo switches every configured pin to output and leaves it off.
func NewNeo(g gpio.GPIO, config NeoConfig) (*Neo, error) {
	period := config.PWMPeriod
	if period == 0 {
		period = gpio.DefaultPeriod
	}
	if period < 1 || period > gpio.MaxPeriod {
		return nil, fmt.Errorf("pwm period %d out of range", period)
	}

	n := &Neo{
		gpio:      g,
		lights:    append([]int(nil), config.LightPins...),
		ready:     config.ReadyPin,
		fault:     config.FaultPin,
		pwmPeriod: period,
	}

	for _, pin := range n.outputs() {
		if err := g.SetMode(pin, gpio.Out); err != nil {
			return nil, fmt.Errorf("unable to set up pin %d: %w", pin, err)
		}
	}

	return n, nil
}

func (n *Neo) Name() string {
	return "neo"
}

func (n *Neo) outputs() []int {
	pins := append([]int(nil), n.lights...)
	if n.ready != nil {
		pins = append(pins, *n.ready)
	}
	if n.fault != nil {
		pins = append(pins, *n.fault)
	}
	return pins
}

func (n *Neo) SetLights(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}

	for _, pin := range n.lights {
		// drops any dimming first
		if err := n.gpio.SetMode(pin, gpio.Out); err != nil {
			return fmt.Errorf("can't switch light pin %d: %w", pin, err)
		}

		if err := n.gpio.Write(pin, level); err != nil {
			return fmt.Errorf("can't turn light pin %d %s: %w", pin, onOff(on), err)
		}
	}

	return nil
}

func (n *Neo) SetLightBrightness(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("brightness %v not in 0 to 1", v)
	}

	duty := int(math.Round(v * gpio.MaxDuty))
	for _, pin := range n.lights {
		if err := n.gpio.WritePWM(pin, duty, n.pwmPeriod); err != nil {
			return fmt.Errorf("can't set light pin %d brightness: %w", pin, err)
		}
	}

	return nil
}

func (n *Neo) SetStatus(status Status, value bool) error {
	var pin *int
	switch status {
	case Ready:
		pin = n.ready
	case Fault:
		pin = n.fault
	}

	if pin == nil {
		return ErrUnsupportedStatus{fmt.Errorf("status %q not wired on this Neo", status)}
	}

	level := gpio.Low
	if value {
		level = gpio.High
	}

	if err := n.gpio.Write(*pin, level); err != nil {
		return fmt.Errorf("can't set %s LED %s: %w", status, onOff(value), err)
	}

	return nil
}

func (n *Neo) Close() error {
	for _, pin := range n.lights {
		if err := n.gpio.StopPWM(pin); err != nil {
			return fmt.Errorf("unable to stop dimming light pin %d: %w", pin, err)
		}
	}

	for _, pin := range n.outputs() {
		if err := n.gpio.Write(pin, gpio.Low); err != nil {
			return fmt.Errorf("unable to turn off pin %d: %w", pin, err)
		}
	}

	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
