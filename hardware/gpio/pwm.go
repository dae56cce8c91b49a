package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MaxDuty is a fully on duty cycle.
	MaxDuty = 255

	// MaxPeriod is the longest software PWM period, in microseconds.
	MaxPeriod = 1000000000

	// resyncRate scales the period into the number of cycles a worker runs on
	// a parameter snapshot before it looks for new parameters.
	resyncRate = 0.0001
)

// Remap linearly maps v from [inLo, inHi] onto [outLo, outHi].
func Remap(v, inLo, inHi, outLo, outHi float64) float64 {
	return (v-inLo)/(inHi-inLo)*(outHi-outLo) + outLo
}

// pwmParams is immutable once published to a task.
type pwmParams struct {
	duty   int
	period int
	high   time.Duration
	low    time.Duration
	resync uint64
}

func newPWMParams(duty, period int) *pwmParams {
	high := int(Remap(float64(duty), 0, MaxDuty, 0, float64(period)))

	return &pwmParams{
		duty:   duty,
		period: period,
		high:   time.Duration(high) * time.Microsecond,
		low:    time.Duration(period-high) * time.Microsecond,
		resync: uint64(resyncRate * float64(period)),
	}
}

type pwmTask struct {
	pin *pin

	// params is the single slot callers publish new parameters into
	params atomic.Pointer[pwmParams]

	toggles atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	errMu sync.Mutex
	err   error
}

func newPWMTask(p *pin, params *pwmParams) *pwmTask {
	t := &pwmTask{
		pin:  p,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	t.params.Store(params)
	return t
}

// halt stops the worker and waits for it to exit.
func (t *pwmTask) halt() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *pwmTask) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (t *pwmTask) fail(err error) {
	t.errMu.Lock()
	t.err = err
	t.errMu.Unlock()
}

func (t *pwmTask) lastErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// PWMStatus describes the software PWM worker of a pin.
type PWMStatus struct {
	Pin     int           `json:"pin"`
	Running bool          `json:"running"`
	Duty    int           `json:"duty"`
	Period  int           `json:"period"`
	High    time.Duration `json:"high"`
	Low     time.Duration `json:"low"`
	Toggles uint64        `json:"toggles"`
	Err     string        `json:"error,omitempty"`
}

// WriteDuty runs software PWM on a pin at the default period.
func (e *Engine) WriteDuty(id int, duty int) error {
	return e.WritePWM(id, duty, e.defaultPeriod)
}

// WritePWM runs software PWM on a pin with duty (0 - 255) over period
// microseconds. The first call on a pin starts its worker; later calls only
// hand the worker new parameters, which it picks up within one resync
// interval. An interrupt attached to the pin is detached first.
func (e *Engine) WritePWM(id int, duty int, period int) error {
	if id < 0 || id >= len(e.lines) {
		return newError(ErrPin, "pwm", id, fmt.Errorf("want 0 to %d", len(e.lines)-1))
	}
	if duty < 0 || duty > MaxDuty {
		return newError(ErrDuty, "pwm", id, fmt.Errorf("duty %d not in 0 to %d", duty, MaxDuty))
	}
	if period < 1 || period > MaxPeriod {
		return newError(ErrPeriod, "pwm", id, fmt.Errorf("period %d not in 1 to %d", period, MaxPeriod))
	}

	p, err := e.lookup("pwm", id)
	if err != nil {
		return err
	}

	params := newPWMParams(duty, period)

	p.ctl.Lock()
	defer p.ctl.Unlock()

	e.mu.Lock()
	if t, ok := e.tasks[id]; ok && t.alive() {
		t.params.Store(params)
		e.mu.Unlock()
		return nil
	}
	b := e.bindings[id]
	delete(e.bindings, id)
	e.mu.Unlock()

	if b != nil {
		b.halt()
	}

	p.mu.Lock()
	err = p.setDirection(Out)
	if err == nil {
		err = p.writeLevel(Low)
	}
	p.mu.Unlock()
	if err != nil {
		return newError(ErrUnusable, "pwm", id, err)
	}

	t := newPWMTask(p, params)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != ready {
		return newError(ErrUnusable, "pwm", id, fmt.Errorf("gpio freed while starting pwm"))
	}

	e.tasks[id] = t
	go e.runPWM(t)

	e.logger.WithField("pin", id).WithField("duty", duty).WithField("period", period).Debug("started software pwm")

	return nil
}

// StopPWM stops the worker of a pin, if any, and drives the pin low.
func (e *Engine) StopPWM(id int) error {
	p, err := e.lookup("stop pwm", id)
	if err != nil {
		return err
	}

	p.ctl.Lock()
	defer p.ctl.Unlock()

	e.mu.Lock()
	t := e.tasks[id]
	delete(e.tasks, id)
	e.mu.Unlock()

	if t == nil {
		return nil
	}

	t.halt()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writeLevel(Low); err != nil {
		return newError(ErrUnusable, "stop pwm", id, err)
	}

	return nil
}

// PWMStatus reports the worker of a pin. A pin that never ran software PWM
// reports a zero status.
func (e *Engine) PWMStatus(id int) (PWMStatus, error) {
	if _, err := e.lookup("pwm status", id); err != nil {
		return PWMStatus{}, err
	}

	e.mu.Lock()
	t := e.tasks[id]
	e.mu.Unlock()

	status := PWMStatus{Pin: id}
	if t == nil {
		return status, nil
	}

	params := t.params.Load()
	status.Running = t.alive()
	status.Duty = params.duty
	status.Period = params.period
	status.High = params.high
	status.Low = params.low
	status.Toggles = t.toggles.Load()
	if err := t.lastErr(); err != nil {
		status.Err = err.Error()
	}

	return status, nil
}

// runPWM toggles the pin until the task is halted or a write fails.
func (e *Engine) runPWM(t *pwmTask) {
	defer close(t.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	params := t.params.Load()
	var counter uint64

	for {
		select {
		case <-t.stop:
			return
		default:
		}

		if counter > params.resync {
			params = t.params.Load()
			counter = 0
		}
		counter++

		if params.high > 0 {
			if err := e.drive(t.pin, High); err != nil {
				t.fail(err)
				e.report(t.pin.id, "pwm", err)
				return
			}
			if !sleep(timer, params.high, t.stop) {
				return
			}
		}

		if params.low > 0 {
			if err := e.drive(t.pin, Low); err != nil {
				t.fail(err)
				e.report(t.pin.id, "pwm", err)
				return
			}
			if !sleep(timer, params.low, t.stop) {
				return
			}
		}

		t.toggles.Add(1)
	}
}

func (e *Engine) drive(p *pin, level Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writeLevel(level); err != nil {
		return fmt.Errorf("unable to drive %s: %w", level, err)
	}

	return nil
}

// sleep waits for d on a stopped timer. It returns false when stop closes
// first, leaving the timer stopped. Reset never delivers a stale fire, so the
// channel needs no draining.
func sleep(timer *time.Timer, d time.Duration, stop <-chan struct{}) bool {
	timer.Reset(d)

	select {
	case <-timer.C:
		return true
	case <-stop:
		timer.Stop()
		return false
	}
}
