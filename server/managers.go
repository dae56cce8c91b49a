package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
)

// hardwareManager synchronizes access to the underlying hardware. We need to
// close hardware before replacing it, and we can't be passing out hardware and
// then close it while a caller might be using it.
type hardwareManager struct {
	gpio     gpio.GPIO
	hardware hardware.Hardware
	mu       *sync.RWMutex
}

func (h *hardwareManager) Update(config hardware.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hardware != nil {
		if err := h.hardware.Close(); err != nil {
			return fmt.Errorf("unable to close current hardware: %w", err)
		}
		h.hardware = nil
	}

	var err error
	h.hardware, err = hardware.New(h.gpio, config)
	if err != nil {
		return fmt.Errorf("unable to create new hardware from config: %w", err)
	}

	return nil
}

// View calls fn with the current hardware, which is nil when none is set up.
func (h *hardwareManager) View(fn func(h hardware.Hardware)) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fn(h.hardware)
}

func (h *hardwareManager) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hardware == nil {
		return nil
	}

	err := h.hardware.Close()
	h.hardware = nil
	return err
}

// setStatus indicates a status if the hardware can.
func (h *hardwareManager) setStatus(status hardware.Status, value bool) error {
	var err error
	h.View(func(hw hardware.Hardware) {
		if indicators, ok := hw.(hardware.StatusIndicators); ok {
			err = indicators.SetStatus(status, value)
		}
	})
	return err
}

// PinEvents counts the edges delivered on a pin.
type PinEvents struct {
	Pin   int        `json:"pin"`
	Count uint64     `json:"count"`
	Level gpio.Level `json:"level"`
	At    time.Time  `json:"at"`
}

// eventLog records the edges of every pin with an interrupt attached through
// the server.
type eventLog struct {
	logger *logrus.Logger

	mu     sync.Mutex
	events map[int]PinEvents
}

func newEventLog(logger *logrus.Logger) *eventLog {
	return &eventLog{logger: logger, events: make(map[int]PinEvents)}
}

// handler returns the interrupt handler recording into the log.
func (l *eventLog) handler() gpio.Handler {
	return gpio.HandlerFunc(func(pin int, level gpio.Level) {
		l.mu.Lock()
		ev := l.events[pin]
		ev.Pin = pin
		ev.Count++
		ev.Level = level
		ev.At = time.Now()
		l.events[pin] = ev
		l.mu.Unlock()

		l.logger.WithField("pin", pin).WithField("level", level.String()).Debug("edge")
	})
}

func (l *eventLog) get(pin int) PinEvents {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[pin]
	if !ok {
		return PinEvents{Pin: pin, Level: gpio.Invalid}
	}
	return ev
}

func (l *eventLog) reset(pin int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.events, pin)
}
