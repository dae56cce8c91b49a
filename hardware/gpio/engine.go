package gpio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type lifecycle int

const (
	uninitialized lifecycle = iota
	ready
	closed
)

// DefaultPeriod is the software PWM period used by WriteDuty, in microseconds (49 Hz).
const DefaultPeriod = 20408

// Options tune an Engine.
type Options struct {
	Logger *logrus.Logger

	// DefaultPeriod is the period WriteDuty uses, in microseconds
	DefaultPeriod int

	// NoExitHook stops Init from freeing the pins on SIGINT/SIGTERM. Set it when
	// the caller already frees the engine during its own shutdown.
	NoExitHook bool
}

// Engine owns the pin table together with every PWM worker and interrupt
// watcher running on it. Pins are addressed by their index into the line map
// the engine was created with.
type Engine struct {
	backend       Backend
	lines         []int
	logger        *logrus.Logger
	defaultPeriod int
	exitHook      bool
	exitOnce      sync.Once

	errs chan WorkerError

	mu       sync.Mutex // guards everything below
	state    lifecycle
	pins     []*pin
	tasks    map[int]*pwmTask
	bindings map[int]*binding
}

// pin is one row of the pin table.
type pin struct {
	id   int
	line int

	// ctl serializes operations that start or stop a worker or watcher on the pin
	ctl sync.Mutex

	mu        sync.Mutex // guards the handles and cached state
	value     Handle
	direction Handle
	edge      Handle
	activeLow Handle
	usable    bool
	dir       Direction
	level     Level
	edgeMode  Edge
}

// New creates an engine over backend. lines maps every pin index to its kernel
// GPIO line number.
func New(backend Backend, lines []int, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	period := opts.DefaultPeriod
	if period == 0 {
		period = DefaultPeriod
	}

	return &Engine{
		backend:       backend,
		lines:         append([]int(nil), lines...),
		logger:        logger,
		defaultPeriod: period,
		exitHook:      !opts.NoExitHook,
		errs:          make(chan WorkerError, 64),
		tasks:         make(map[int]*pwmTask),
		bindings:      make(map[int]*binding),
	}
}

// Lines is the number of pins in the table.
func (e *Engine) Lines() int {
	return len(e.lines)
}

// Init exports every line and opens its handles. It is idempotent. Pins whose
// handles all opened are usable even when others failed; the returned error
// then carries the worst code seen.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == ready {
		return nil
	}

	var worst Code
	var causes []error

	e.pins = make([]*pin, len(e.lines))
	for id, line := range e.lines {
		p := &pin{id: id, line: line, dir: In, level: Low, edgeMode: EdgeNone}
		e.pins[id] = p

		// opening may still work when the line was exported by someone else
		if err := e.backend.Export(line); err != nil {
			worst = combine(worst, ErrExport)
			causes = append(causes, fmt.Errorf("pin %d: %w", id, err))
		}

		if err := p.open(e.backend); err != nil {
			worst = combine(worst, ErrUnusable)
			causes = append(causes, fmt.Errorf("pin %d: %w", id, err))
			e.logger.WithField("pin", id).WithField("line", line).Warnf("pin unusable: %s", err)
			continue
		}

		p.load()
	}

	e.state = ready
	if e.exitHook {
		e.registerExitHook()
	}

	e.logger.WithField("pins", len(e.lines)).Info("gpio initialized")

	if worst != "" {
		return newError(worst, "init", -1, errors.Join(causes...))
	}

	return nil
}

// Free stops every PWM worker and interrupt watcher, then closes the handles.
// It is idempotent.
func (e *Engine) Free() error {
	e.mu.Lock()
	if e.state != ready {
		e.mu.Unlock()
		return nil
	}

	e.state = closed
	tasks, bindings, pins := e.tasks, e.bindings, e.pins
	e.tasks = make(map[int]*pwmTask)
	e.bindings = make(map[int]*binding)
	e.mu.Unlock()

	// workers and watchers must be gone before their handles are closed
	for _, t := range tasks {
		t.halt()
		t.pin.mu.Lock()
		if t.pin.usable {
			_ = t.pin.writeLevel(Low)
		}
		t.pin.mu.Unlock()
	}
	for _, b := range bindings {
		b.halt()
		b.pin.mu.Lock()
		if b.pin.usable {
			_ = b.pin.setEdge(EdgeNone)
		}
		b.pin.mu.Unlock()
	}

	var worst Code
	var causes []error
	for _, p := range pins {
		p.mu.Lock()
		if p.usable {
			if err := p.close(); err != nil {
				worst = combine(worst, ErrUnusable)
				causes = append(causes, fmt.Errorf("pin %d: %w", p.id, err))
			}
		}
		p.usable = false
		p.mu.Unlock()
	}

	e.logger.Info("gpio freed")

	if worst != "" {
		return newError(worst, "free", -1, errors.Join(causes...))
	}

	return nil
}

// IsUsable reports whether every handle of pin opened during Init.
func (e *Engine) IsUsable(id int) bool {
	p, err := e.lookup("usable", id)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.usable
}

// lookup range-checks id and returns its row while the engine is ready.
func (e *Engine) lookup(op string, id int) (*pin, error) {
	if id < 0 || id >= len(e.lines) {
		return nil, newError(ErrPin, op, id, fmt.Errorf("want 0 to %d", len(e.lines)-1))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != ready {
		return nil, newError(ErrUnusable, op, id, errors.New("gpio not initialized"))
	}

	return e.pins[id], nil
}

func (p *pin) open(b Backend) error {
	var err error
	handles := []struct {
		attr Attr
		h    *Handle
	}{
		{AttrValue, &p.value},
		{AttrDirection, &p.direction},
		{AttrEdge, &p.edge},
		{AttrActiveLow, &p.activeLow},
	}

	for _, h := range handles {
		*h.h, err = b.Open(p.line, h.attr)
		if err != nil {
			p.close()
			return err
		}
	}

	p.usable = true
	return nil
}

// load picks up the direction and edge the line was left in.
func (p *pin) load() {
	if v, err := readAttr(p.direction); err == nil && v == "out" {
		p.dir = Out
	}

	if v, err := readAttr(p.edge); err == nil {
		switch e := Edge(v); e {
		case Rising, Falling, Both:
			p.edgeMode = e
		}
	}
}

func (p *pin) close() error {
	var errs []error
	for _, h := range []*Handle{&p.value, &p.direction, &p.edge, &p.activeLow} {
		if *h == nil {
			continue
		}
		if err := (*h).Close(); err != nil {
			errs = append(errs, err)
		}
		*h = nil
	}

	p.usable = false
	return errors.Join(errs...)
}

// PinInfo is a snapshot of a row of the pin table.
type PinInfo struct {
	Pin       int       `json:"pin"`
	Line      int       `json:"line"`
	Usable    bool      `json:"usable"`
	Direction Direction `json:"direction"`
	Level     Level     `json:"level"`
	Edge      Edge      `json:"edge"`
	PWM       bool      `json:"pwm"`
	Interrupt bool      `json:"interrupt"`
}

// Snapshot returns the cached state of a pin without touching its handles.
func (e *Engine) Snapshot(id int) (PinInfo, error) {
	p, err := e.lookup("snapshot", id)
	if err != nil {
		return PinInfo{}, err
	}

	e.mu.Lock()
	t, hasTask := e.tasks[id]
	_, hasBinding := e.bindings[id]
	e.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	return PinInfo{
		Pin:       id,
		Line:      p.line,
		Usable:    p.usable,
		Direction: p.dir,
		Level:     p.level,
		Edge:      p.edgeMode,
		PWM:       hasTask && t.alive(),
		Interrupt: hasBinding,
	}, nil
}

// Snapshots returns the cached state of every pin.
func (e *Engine) Snapshots() ([]PinInfo, error) {
	infos := make([]PinInfo, 0, len(e.lines))
	for id := range e.lines {
		info, err := e.Snapshot(id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// WorkerError is a failure inside a PWM worker or interrupt watcher.
type WorkerError struct {
	Pin  int
	Role string
	Err  error
}

func (w WorkerError) Error() string {
	return fmt.Sprintf("%s on pin %d: %s", w.Role, w.Pin, w.Err)
}

func (w WorkerError) Unwrap() error { return w.Err }

// Errors delivers failures from PWM workers and interrupt watchers. Errors are
// dropped while nobody drains the channel and its buffer is full.
func (e *Engine) Errors() <-chan WorkerError {
	return e.errs
}

func (e *Engine) report(id int, role string, err error) {
	e.logger.WithField("pin", id).WithField("role", role).Errorf("worker failed: %s", err)

	select {
	case e.errs <- WorkerError{Pin: id, Role: role, Err: err}:
	default:
	}
}
