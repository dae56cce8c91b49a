package gpio

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives the edges of a pin it was attached to.
//
// OnEdge runs on the watcher goroutine of the pin, one call at a time. It must
// not attach or detach its own pin synchronously; do that from another
// goroutine.
type Handler interface {
	OnEdge(pin int, level Level)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(pin int, level Level)

func (f HandlerFunc) OnEdge(pin int, level Level) { f(pin, level) }

// waitRetryDelay spaces out retries after a failed wait.
const waitRetryDelay = 10 * time.Millisecond

type binding struct {
	pin     *pin
	edge    Edge
	handler Handler
	waiter  Waiter

	events atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// halt wakes the watcher and waits for it to exit. The edge attribute is left
// for the caller to reset.
func (b *binding) halt() {
	b.stopOnce.Do(func() {
		close(b.stop)
		_ = b.waiter.Close()
	})
	<-b.done
}

// Binding describes an attached interrupt.
type Binding struct {
	Pin    int    `json:"pin"`
	Edge   Edge   `json:"edge"`
	Events uint64 `json:"events"`
}

// Attach calls h every time edge is seen on a pin. An output pin is switched
// to input and software PWM on the pin is stopped. Attaching to a pin that
// already has a handler replaces it. Attach returns right after starting the
// watcher.
func (e *Engine) Attach(id int, edge string, h Handler) error {
	if id < 0 || id >= len(e.lines) {
		return newError(ErrPin, "attach", id, fmt.Errorf("want 0 to %d", len(e.lines)-1))
	}

	mode, err := ParseEdge(edge)
	if err != nil {
		return newError(ErrInterrupt, "attach", id, errors.Unwrap(err))
	}

	if isNil(h) {
		return newError(ErrInterrupt, "attach", id, errors.New("nil handler"))
	}

	p, err := e.lookup("attach", id)
	if err != nil {
		return err
	}

	p.ctl.Lock()
	defer p.ctl.Unlock()

	e.mu.Lock()
	t := e.tasks[id]
	delete(e.tasks, id)
	old := e.bindings[id]
	delete(e.bindings, id)
	e.mu.Unlock()

	if t != nil {
		t.halt()
	}
	if old != nil {
		old.halt()
		e.logger.WithField("pin", id).Debug("replacing interrupt handler")
	}

	p.mu.Lock()
	switch {
	case !p.usable:
		err = newError(ErrUnusable, "attach", id, errNotUsable)
	case p.dir == Out:
		err = p.setDirection(In)
	}
	if err == nil {
		err = p.setEdge(mode)
	}
	value := p.value
	p.mu.Unlock()
	if err != nil {
		return err
	}

	waiter, err := e.backend.Watch(value)
	if err != nil {
		// setEdge refuses if Free closed the handles in the meantime
		p.mu.Lock()
		_ = p.setEdge(EdgeNone)
		p.mu.Unlock()
		return newError(ErrUnusable, "attach", id, err)
	}

	b := &binding{
		pin:     p,
		edge:    mode,
		handler: h,
		waiter:  waiter,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != ready {
		_ = waiter.Close()
		return newError(ErrUnusable, "attach", id, errors.New("gpio freed while attaching"))
	}

	e.bindings[id] = b
	go e.watch(b)

	e.logger.WithField("pin", id).WithField("edge", mode).Debug("attached interrupt")

	return nil
}

// isNil also catches typed nils, such as a nil *T stored in a Handler.
func isNil(h Handler) bool {
	if h == nil {
		return true
	}

	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Detach stops delivering edges of a pin and turns its edge detection off.
// Detaching a pin without a handler does nothing.
func (e *Engine) Detach(id int) error {
	p, err := e.lookup("detach", id)
	if err != nil {
		return err
	}

	p.ctl.Lock()
	defer p.ctl.Unlock()

	e.mu.Lock()
	b := e.bindings[id]
	delete(e.bindings, id)
	e.mu.Unlock()

	if b == nil {
		return nil
	}

	b.halt()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.usable {
		return nil
	}

	return p.setEdge(EdgeNone)
}

// Bindings lists the attached interrupts ordered by pin.
func (e *Engine) Bindings() []Binding {
	e.mu.Lock()
	defer e.mu.Unlock()

	bindings := make([]Binding, 0, len(e.bindings))
	for id, b := range e.bindings {
		bindings = append(bindings, Binding{Pin: id, Edge: b.edge, Events: b.events.Load()})
	}

	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Pin < bindings[j].Pin })

	return bindings
}

// watch blocks on the waiter and dispatches each edge until halted. Wait and
// read failures don't end the watcher; the handler sees Invalid instead.
func (e *Engine) watch(b *binding) {
	defer close(b.done)

	id := b.pin.id
	for {
		err := b.waiter.Wait()

		select {
		case <-b.stop:
			return
		default:
		}

		if errors.Is(err, ErrWaiterClosed) {
			return
		}

		level := Invalid
		if err != nil {
			e.report(id, "interrupt", err)
		} else {
			b.pin.mu.Lock()
			level, err = b.pin.readLevel()
			b.pin.mu.Unlock()
			if err != nil {
				level = Invalid
				e.report(id, "interrupt", fmt.Errorf("unable to read value: %w", err))
			}
		}

		b.events.Add(1)
		b.handler.OnEdge(id, level)

		if level == Invalid {
			select {
			case <-b.stop:
				return
			case <-time.After(waitRetryDelay):
			}
		}
	}
}
