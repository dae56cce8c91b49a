package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
	"github.com/udooneo/neo/store"
)

func (s *Server) pins(res http.ResponseWriter, req *http.Request) {
	infos, err := s.GPIO.Snapshots()
	respondEngine(res, infos, err)
}

func (s *Server) getPin(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	info, err := s.GPIO.Snapshot(pin)
	respondEngine(res, info, err)
}

func (s *Server) putMode(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	var dir gpio.Direction
	if err := json.NewDecoder(req.Body).Decode(&dir); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.GPIO.SetMode(pin, dir); err != nil {
		respondEngine(res, nil, err)
		return
	}

	s.persist(pin, func(c *gpio.PinConfig) {
		c.Direction = &dir
		c.PWM = nil
		if dir == gpio.Out {
			c.Edge = ""
		} else {
			c.Level = nil
		}
	})

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) getValue(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	level, err := s.GPIO.Read(pin)
	respondEngine(res, level, err)
}

func (s *Server) putValue(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	var level gpio.Level
	if err := json.NewDecoder(req.Body).Decode(&level); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.GPIO.Write(pin, level); err != nil {
		respondEngine(res, nil, err)
		return
	}

	s.persist(pin, func(c *gpio.PinConfig) {
		c.Level = &level
	})

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) getPWM(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	status, err := s.GPIO.PWMStatus(pin)
	respondEngine(res, status, err)
}

func (s *Server) putPWM(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	var pwm gpio.PWMConfig
	if err := json.NewDecoder(req.Body).Decode(&pwm); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}
	if pwm.Period == 0 {
		pwm.Period = s.DefaultPeriod
	}

	if err := s.GPIO.WritePWM(pin, pwm.Duty, pwm.Period); err != nil {
		respondEngine(res, nil, err)
		return
	}

	s.events.reset(pin)
	s.persist(pin, func(c *gpio.PinConfig) {
		out := gpio.Out
		c.Direction = &out
		c.Level = nil
		c.PWM = &pwm
		c.Edge = ""
	})

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) deletePWM(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.GPIO.StopPWM(pin); err != nil {
		respondEngine(res, nil, err)
		return
	}

	s.persist(pin, func(c *gpio.PinConfig) {
		low := gpio.Low
		c.PWM = nil
		c.Level = &low
	})

	respond(res, nil, http.StatusNoContent)
}

type interruptRequest struct {
	Edge string `json:"edge"`
}

func (s *Server) putInterrupt(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	var ir interruptRequest
	if err := json.NewDecoder(req.Body).Decode(&ir); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	s.events.reset(pin)
	if err := s.GPIO.Attach(pin, ir.Edge, s.events.handler()); err != nil {
		respondEngine(res, nil, err)
		return
	}

	s.persist(pin, func(c *gpio.PinConfig) {
		in := gpio.In
		c.Direction = &in
		c.PWM = nil
		c.Edge = gpio.Edge(ir.Edge)
	})

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) deleteInterrupt(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.GPIO.Detach(pin); err != nil {
		respondEngine(res, nil, err)
		return
	}

	s.persist(pin, func(c *gpio.PinConfig) {
		c.Edge = ""
	})

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) getEvents(res http.ResponseWriter, req *http.Request) {
	pin, err := pinParam(req)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if _, err := s.GPIO.Snapshot(pin); err != nil {
		respondEngine(res, nil, err)
		return
	}

	respond(res, s.events.get(pin), http.StatusOK)
}

// persist folds a change into the stored config of a pin. The pin has already
// changed, so a failure is only logged.
func (s *Server) persist(pin int, fn func(c *gpio.PinConfig)) {
	c, err := s.Store.PinConfig(pin)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.Logger.WithField("pin", pin).Warnf("unable to load pin config: %s", err)
		return
	}

	fn(&c)

	if err := s.Store.PutPinConfig(pin, c); err != nil {
		s.Logger.WithField("pin", pin).Warnf("unable to persist pin config: %s", err)
	}
}

func (s *Server) getHardware(res http.ResponseWriter, req *http.Request) {
	config, err := s.Store.HardwareConfig()
	if errors.Is(err, store.ErrNotFound) {
		respond(res, err, http.StatusNotFound)
		return
	}
	if err != nil {
		respond(res, err, http.StatusInternalServerError)
		return
	}

	respond(res, config, http.StatusOK)
}

func (s *Server) putHardware(res http.ResponseWriter, req *http.Request) {
	var hardware hardware.Config
	if err := json.NewDecoder(req.Body).Decode(&hardware); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.Store.PutHardwareConfig(hardware); err != nil {
		respond(res, err, http.StatusInternalServerError)
		return
	}

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) updateHardware(res http.ResponseWriter, req *http.Request) {
	config, err := s.Store.HardwareConfig()
	if err != nil {
		respond(res, err, http.StatusInternalServerError)
		return
	}

	if err := s.hardwareManager.Update(config); err != nil {
		respond(res, err, http.StatusInternalServerError)
		return
	}

	respond(res, nil, http.StatusOK)
}

type lightsRequest struct {
	On         *bool    `json:"on,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
}

func (s *Server) putLights(res http.ResponseWriter, req *http.Request) {
	var lr lightsRequest
	if err := json.NewDecoder(req.Body).Decode(&lr); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	code := http.StatusNoContent
	var err error
	s.hardwareManager.View(func(h hardware.Hardware) {
		switch {
		case h == nil:
			code, err = http.StatusConflict, errors.New("no hardware set up")
		case lr.Brightness != nil:
			light, ok := h.(hardware.DimmableLight)
			if !ok {
				code, err = http.StatusNotImplemented, fmt.Errorf("%s can't dim its light", h.Name())
				return
			}
			if err = light.SetLightBrightness(*lr.Brightness); err != nil {
				code = http.StatusInternalServerError
			}
		case lr.On != nil:
			light, ok := h.(hardware.BinaryLight)
			if !ok {
				code, err = http.StatusNotImplemented, fmt.Errorf("%s can't switch its light", h.Name())
				return
			}
			if err = light.SetLights(*lr.On); err != nil {
				code = http.StatusInternalServerError
			}
		default:
			code, err = http.StatusUnprocessableEntity, errors.New("want on or brightness")
		}
	})

	respond(res, err, code)
}
