package store

import (
	"errors"
	"io"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
)

// ErrNotFound is returned when a requested config was never stored.
var ErrNotFound = errors.New("not found")

// Store describes a persistent storage engine for neo information.
type Store interface {
	PinConfig(pin int) (gpio.PinConfig, error)
	ListPinConfigs() (map[int]gpio.PinConfig, error)
	PutPinConfig(pin int, c gpio.PinConfig) error
	DeletePinConfig(pin int) error

	HardwareConfig() (hardware.Config, error)
	PutHardwareConfig(h hardware.Config) error

	io.Closer
}
