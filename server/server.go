package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
	"github.com/udooneo/neo/store"
)

// Pins is the part of the gpio engine the server exposes.
type Pins interface {
	gpio.GPIO

	Read(pin int) (gpio.Level, error)
	Snapshot(pin int) (gpio.PinInfo, error)
	Snapshots() ([]gpio.PinInfo, error)
	PWMStatus(pin int) (gpio.PWMStatus, error)
	Attach(pin int, edge string, h gpio.Handler) error
	Detach(pin int) error
	Apply(pin int, c gpio.PinConfig, h gpio.Handler) error
	Errors() <-chan gpio.WorkerError
}

// compile-time check for whether the engine satisfies the Pins interface
var _ Pins = &gpio.Engine{}

const shutdownTimeout = 5 * time.Second

type Server struct {
	Addr string

	Store  store.Store
	GPIO   Pins
	Logger *logrus.Logger

	// DefaultPeriod fills in PWM requests without a period, in microseconds
	DefaultPeriod int

	events          *eventLog
	hardwareManager *hardwareManager
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.init(); err != nil {
		return fmt.Errorf("unable to initialize: %w", err)
	}
	defer s.hardwareManager.Close()

	httpServer := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router(),
		ReadTimeout:       time.Second * 15,
		ReadHeaderTimeout: time.Second * 15,
		IdleTimeout:       time.Second * 30,
		MaxHeaderBytes:    4096,
	}

	listenErrs := make(chan error, 1)
	go func() {
		s.Logger.WithField("addr", s.Addr).Info("serving http")
		listenErrs <- httpServer.ListenAndServe()
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	go func() {
		s.Logger.Info("watching gpio workers")
		s.watchWorkers(watchCtx)
	}()

	select {
	case err := <-listenErrs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-listenErrs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) router() http.Handler {
	mux := httprouter.New()

	mux.HandlerFunc(http.MethodGet, "/pins", s.pins)
	mux.HandlerFunc(http.MethodGet, "/pins/:pin", s.getPin)
	mux.HandlerFunc(http.MethodPut, "/pins/:pin/mode", s.putMode)
	mux.HandlerFunc(http.MethodGet, "/pins/:pin/value", s.getValue)
	mux.HandlerFunc(http.MethodPut, "/pins/:pin/value", s.putValue)
	mux.HandlerFunc(http.MethodGet, "/pins/:pin/pwm", s.getPWM)
	mux.HandlerFunc(http.MethodPut, "/pins/:pin/pwm", s.putPWM)
	mux.HandlerFunc(http.MethodDelete, "/pins/:pin/pwm", s.deletePWM)
	mux.HandlerFunc(http.MethodPut, "/pins/:pin/interrupt", s.putInterrupt)
	mux.HandlerFunc(http.MethodDelete, "/pins/:pin/interrupt", s.deleteInterrupt)
	mux.HandlerFunc(http.MethodGet, "/pins/:pin/events", s.getEvents)

	mux.HandlerFunc(http.MethodGet, "/hardware", s.getHardware)
	mux.HandlerFunc(http.MethodPut, "/hardware", s.putHardware)
	mux.HandlerFunc(http.MethodPut, "/hardware/lights", s.putLights)

	mux.HandlerFunc(http.MethodPost, "/rpc/updateHardware", s.updateHardware)

	return mux
}

// init sets up the hardware manager with the config from the store and
// restores every stored pin config
func (s *Server) init() error {
	if s.Logger == nil {
		s.Logger = logrus.StandardLogger()
	}
	if s.DefaultPeriod == 0 {
		s.DefaultPeriod = gpio.DefaultPeriod
	}

	s.events = newEventLog(s.Logger)
	s.hardwareManager = &hardwareManager{gpio: s.GPIO, mu: new(sync.RWMutex)}

	s.restorePins()

	config, err := s.Store.HardwareConfig()
	if err == nil {
		if err := s.hardwareManager.Update(config); err != nil {
			s.Logger.Warnf("unable to setup new hardware: %s", err)
		}
	} else {
		s.Logger.Warnf("no hardware config found: %s", err)
	}

	if err := s.hardwareManager.setStatus(hardware.Ready, true); err != nil && !errors.Is(err, hardware.ErrUnsupportedStatus{}) {
		s.Logger.Warnf("unable to indicate ready status: %s", err)
	}

	return nil
}

// restorePins applies the stored pin configs in pin order. A pin that can't
// be restored is skipped.
func (s *Server) restorePins() {
	configs, err := s.Store.ListPinConfigs()
	if err != nil {
		s.Logger.Warnf("unable to load pin configs: %s", err)
		return
	}

	pins := make([]int, 0, len(configs))
	for pin := range configs {
		pins = append(pins, pin)
	}
	sort.Ints(pins)

	for _, pin := range pins {
		if err := s.GPIO.Apply(pin, configs[pin], s.events.handler()); err != nil {
			s.Logger.WithField("pin", pin).Warnf("unable to restore pin: %s", err)
			continue
		}

		s.Logger.WithField("pin", pin).Debug("restored pin")
	}
}

// watchWorkers logs failing PWM workers and interrupt watchers and raises the
// fault status while they fail.
func (s *Server) watchWorkers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case werr := <-s.GPIO.Errors():
			s.Logger.WithField("pin", werr.Pin).WithField("role", werr.Role).Errorf("gpio worker error: %s", werr.Err)

			if err := s.hardwareManager.setStatus(hardware.Fault, true); err != nil && !errors.Is(err, hardware.ErrUnsupportedStatus{}) {
				s.Logger.Warnf("unable to indicate fault status: %s", err)
			}
		}
	}
}
