package gpio

import "time"

var Combine = combine

// TaskOf returns the identity of the PWM task of a pin, nil without one.
func TaskOf(e *Engine, id int) interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return nil
	}
	return t
}

// LiveTasks counts PWM workers that haven't exited.
func LiveTasks(e *Engine) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, t := range e.tasks {
		if t.alive() {
			n++
		}
	}
	return n
}

func Params(duty, period int) (high, low time.Duration, resync uint64) {
	p := newPWMParams(duty, period)
	return p.high, p.low, p.resync
}
