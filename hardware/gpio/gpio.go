// Package gpio drives the general purpose I/O pins of an embedded Linux board
// through the sysfs GPIO interface. It provides direction and level control,
// software PWM on pins without a PWM controller, and edge interrupts.
package gpio

import (
	"fmt"
	"strconv"
)

// Level describes the binary state of a GPIO pin: either LOW or HIGH.
// Invalid is handed to interrupt handlers when the pin value couldn't be read.
type Level int

const (
	Invalid Level = -1
	Low     Level = 0
	High    Level = 1
)

func (l Level) String() string {
	switch l {
	case Low:
		return "0"
	case High:
		return "1"
	default:
		return "invalid"
	}
}

func parseLevel(s string) (Level, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return Invalid, fmt.Errorf("unable to parse level %q: %w", s, err)
	}

	switch Level(v) {
	case Low, High:
		return Level(v), nil
	}

	return Invalid, fmt.Errorf("level %d out of range", v)
}

// Direction is the data direction of a pin.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// MarshalText encodes the direction the way sysfs spells it.
func (d Direction) MarshalText() ([]byte, error) {
	if d != In && d != Out {
		return nil, ErrDir
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	dir, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// ParseDirection accepts "in" and "out".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "in":
		return In, nil
	case "out":
		return Out, nil
	}
	return In, &Error{Code: ErrDir, Op: "parse direction", Pin: -1, Err: fmt.Errorf("unknown direction %q", s)}
}

// Edge is the transition that raises an interrupt on a pin.
type Edge string

const (
	EdgeNone Edge = "none"
	Rising   Edge = "rising"
	Falling  Edge = "falling"
	Both     Edge = "both"
)

// ParseEdge accepts the edges an interrupt can be attached to. "none" is not
// one of them.
func ParseEdge(s string) (Edge, error) {
	switch e := Edge(s); e {
	case Rising, Falling, Both:
		return e, nil
	}
	return EdgeNone, &Error{Code: ErrInterrupt, Op: "parse edge", Pin: -1, Err: fmt.Errorf("unknown edge %q", s)}
}

// GPIO is the part of the engine board code drives.
type GPIO interface {
	// SetMode sets a pin to input or output
	SetMode(pin int, dir Direction) error

	// Write sets an output pin LOW or HIGH, or the pull resistor of an input pin
	Write(pin int, level Level) error

	// WritePWM starts or updates software PWM with a duty cycle (0 - 255) and a
	// period in microseconds.
	WritePWM(pin int, duty int, period int) error

	// StopPWM stops software PWM on a pin and leaves it LOW.
	StopPWM(pin int) error
}

// compile-time check for whether Engine satisfies the GPIO interface
var _ GPIO = &Engine{}
