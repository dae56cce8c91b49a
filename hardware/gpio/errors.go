package gpio

import (
	"errors"
	"fmt"
)

// Code is a stable error identifier returned by every engine operation. It
// is comparable and implements error, so callers match it with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK                Code = "ok"
	ErrPin            Code = "pin out of range"
	ErrDir            Code = "invalid direction or level"
	ErrDuty           Code = "duty cycle out of range"
	ErrPeriod         Code = "period out of range"
	ErrUnusable       Code = "pin unusable"
	ErrExport         Code = "export failed"
	ErrUnusableExport Code = "export failed and pin unusable"
	ErrInterrupt      Code = "invalid interrupt"
	ErrRead           Code = "read failed"
)

// Error carries a Code together with the operation and pin it came from.
type Error struct {
	Code Code
	Op   string
	Pin  int
	Err  error
}

func (e *Error) Error() string {
	msg := "gpio: " + e.Op
	if e.Pin >= 0 {
		msg += fmt.Sprintf(" pin %d", e.Pin)
	}
	msg += ": " + string(e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's code, so errors.Is(err, ErrPin) works on wrapped errors.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// CodeOf extracts the Code from err. A nil error is OK.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var c Code
	if errors.As(err, &c) {
		return c
	}

	return ErrUnusable
}

// combine folds the code of another failure into an aggregate code. Export and
// handle failures together escalate to ErrUnusableExport.
func combine(worst, next Code) Code {
	switch {
	case worst == "" || worst == OK:
		return next
	case next == "" || next == OK:
		return worst
	case worst == ErrUnusableExport || next == ErrUnusableExport:
		return ErrUnusableExport
	case (worst == ErrExport && next == ErrUnusable) || (worst == ErrUnusable && next == ErrExport):
		return ErrUnusableExport
	}
	return worst
}

func newError(code Code, op string, pin int, err error) error {
	return &Error{Code: code, Op: op, Pin: pin, Err: err}
}
