package hardware

import (
	"errors"
	"io"
)

// Hardware defines a common interface for boards neo can drive
//
// Not every board wiring has status LEDs, or a dimmable light, so this is a
// fairly minimal interface. Most of the time this interface should be type
// asserted to a more specific interface. For example, you can assert to the
// BinaryLight interface for on/off light control, or the DimmableLight
// interface for brightness control.
type Hardware interface {
	Name() string

	// Close turns every output the hardware drives off. It doesn't free the
	// underlying GPIO.
	io.Closer
}

// BinaryLight describes hardware with a light that can be toggled on/off
type BinaryLight interface {
	// SetLights turns the light on or off
	SetLights(on bool) error
}

// DimmableLight describes hardware with a light that can be dimmed
type DimmableLight interface {
	// SetLightBrightness sets the light brightness (from off - 0, to fully on - 1)
	SetLightBrightness(v float64) error
}

// Status defines a list of statuses that can be indicated in various ways by different
// hardware
type Status int

const (
	// Ready is set once the daemon has restored its pins and serves requests
	Ready Status = iota

	// Fault is set while a PWM worker or interrupt watcher is failing
	Fault
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

type ErrUnsupportedStatus struct {
	error
}

func (err ErrUnsupportedStatus) Is(target error) bool {
	_, ok := target.(ErrUnsupportedStatus)
	return ok
}

// StatusIndicators describes hardware with one or more status indicators
type StatusIndicators interface {
	// SetStatus sets a status on or off. If the underlying hardware can't indicate this
	// status, it should return an ErrUnsupportedStatus error.
	SetStatus(status Status, value bool) error
}

// Config selects and configures the hardware. Exactly one field must be set.
type Config struct {
	Neo *NeoConfig `json:"neo,omitempty" yaml:"neo,omitempty"`
}

var ErrNoHardware = errors.New("no hardware configured")
