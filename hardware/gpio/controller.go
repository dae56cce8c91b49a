package gpio

import (
	"errors"
	"fmt"
)

var errNotUsable = errors.New("pin handles are not open")

// SetMode sets the direction of a pin. Switching to output turns edge
// detection off first. A pin taken over this way stops running software PWM,
// and an output pin drops its interrupt.
func (e *Engine) SetMode(id int, dir Direction) error {
	if dir != In && dir != Out {
		return newError(ErrDir, "set mode", id, fmt.Errorf("unknown direction %d", dir))
	}

	p, err := e.lookup("set mode", id)
	if err != nil {
		return err
	}

	p.ctl.Lock()
	defer p.ctl.Unlock()

	e.mu.Lock()
	t := e.tasks[id]
	delete(e.tasks, id)
	var b *binding
	if dir == Out {
		b = e.bindings[id]
		delete(e.bindings, id)
	}
	e.mu.Unlock()

	if t != nil {
		t.halt()
	}
	if b != nil {
		b.halt()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.setDirection(dir)
}

// Mode returns the cached direction of a pin.
func (e *Engine) Mode(id int) (Direction, error) {
	p, err := e.lookup("mode", id)
	if err != nil {
		return In, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.usable {
		return In, newError(ErrUnusable, "mode", id, errNotUsable)
	}

	return p.dir, nil
}

// Write drives an output pin. On an input pin the level selects the pull
// resistor instead, through the active_low attribute.
func (e *Engine) Write(id int, level Level) error {
	if level != Low && level != High {
		return newError(ErrDir, "write", id, fmt.Errorf("unknown level %d", level))
	}

	p, err := e.lookup("write", id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.usable {
		return newError(ErrUnusable, "write", id, errNotUsable)
	}

	if p.dir == In {
		if err := writeAttr(p.activeLow, level.String()); err != nil {
			return newError(ErrUnusable, "write", id, fmt.Errorf("unable to set pull: %w", err))
		}
		return nil
	}

	if err := p.writeLevel(level); err != nil {
		return newError(ErrUnusable, "write", id, err)
	}

	return nil
}

// Read returns the level of a pin. Output pins answer from the cache, since
// many boards block reads of an output's value file.
func (e *Engine) Read(id int) (Level, error) {
	p, err := e.lookup("read", id)
	if err != nil {
		return Invalid, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.usable {
		return Invalid, newError(ErrUnusable, "read", id, errNotUsable)
	}

	if p.dir == Out {
		return p.level, nil
	}

	level, err := p.readLevel()
	if err != nil {
		return Invalid, newError(ErrRead, "read", id, err)
	}

	return level, nil
}

// The helpers below expect p.mu to be held.

func (p *pin) setDirection(dir Direction) error {
	if !p.usable {
		return newError(ErrUnusable, "set direction", p.id, errNotUsable)
	}

	if dir == Out && p.edgeMode != EdgeNone {
		if err := p.setEdge(EdgeNone); err != nil {
			return err
		}
	}

	if err := writeAttr(p.direction, dir.String()); err != nil {
		return newError(ErrUnusable, "set direction", p.id, err)
	}

	p.dir = dir
	if dir == Out {
		// the kernel drives a line low when it becomes an output
		p.level = Low
	}

	return nil
}

func (p *pin) setEdge(edge Edge) error {
	if !p.usable {
		return newError(ErrUnusable, "set edge", p.id, errNotUsable)
	}

	if err := writeAttr(p.edge, string(edge)); err != nil {
		return newError(ErrUnusable, "set edge", p.id, err)
	}

	p.edgeMode = edge
	return nil
}

func (p *pin) writeLevel(level Level) error {
	if !p.usable {
		return errNotUsable
	}

	if err := writeAttr(p.value, level.String()); err != nil {
		return err
	}

	p.level = level
	return nil
}

func (p *pin) readLevel() (Level, error) {
	if !p.usable {
		return Invalid, errNotUsable
	}

	v, err := readAttr(p.value)
	if err != nil {
		return Invalid, err
	}

	level, err := parseLevel(v)
	if err != nil {
		return Invalid, err
	}

	p.level = level
	return level, nil
}
