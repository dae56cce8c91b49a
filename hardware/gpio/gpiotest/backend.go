// Package gpiotest provides an in-memory gpio.Backend. It records every write
// to a pin attribute and lets tests raise edges by hand.
package gpiotest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/udooneo/neo/hardware/gpio"
)

// Write is one write to a pin attribute.
type Write struct {
	Line  int
	Attr  gpio.Attr
	Value string
}

type key struct {
	line int
	attr gpio.Attr
}

// Backend is a gpio.Backend whose attribute files live in memory.
type Backend struct {
	mu sync.Mutex

	files      map[key]string
	writes     []Write
	reads      map[key]int
	exported   map[int]bool
	failExport map[int]bool
	failOpen   map[key]bool
	failRead   map[key]bool
	failWrite  map[key]bool
	failWait   map[int]error
	waiters    map[int][]*Waiter
	watches    int
}

// compile-time check for whether Backend satisfies the gpio.Backend interface
var _ gpio.Backend = &Backend{}

func New() *Backend {
	return &Backend{
		files:      make(map[key]string),
		reads:      make(map[key]int),
		exported:   make(map[int]bool),
		failExport: make(map[int]bool),
		failOpen:   make(map[key]bool),
		failRead:   make(map[key]bool),
		failWrite:  make(map[key]bool),
		failWait:   make(map[int]error),
		waiters:    make(map[int][]*Waiter),
	}
}

var defaults = map[gpio.Attr]string{
	gpio.AttrValue:     "0",
	gpio.AttrDirection: "in",
	gpio.AttrEdge:      "none",
	gpio.AttrActiveLow: "0",
}

func (b *Backend) Export(line int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failExport[line] {
		return fmt.Errorf("export of line %d refused", line)
	}

	b.exported[line] = true
	return nil
}

func (b *Backend) Open(line int, attr gpio.Attr) (gpio.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{line, attr}
	if b.failOpen[k] {
		return nil, &os.PathError{Op: "open", Path: fmt.Sprintf("gpio%d/%s", line, attr), Err: os.ErrPermission}
	}

	if _, ok := b.files[k]; !ok {
		b.files[k] = defaults[attr]
	}

	return &handle{b: b, k: k}, nil
}

func (b *Backend) Watch(value gpio.Handle) (gpio.Waiter, error) {
	h, ok := value.(*handle)
	if !ok {
		return nil, fmt.Errorf("handle %T isn't from this backend", value)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w := &Waiter{b: b, line: h.k.line, edges: make(chan struct{}, 64), closed: make(chan struct{})}
	b.waiters[h.k.line] = append(b.waiters[h.k.line], w)
	b.watches++

	return w, nil
}

// Set presets the contents of an attribute without recording a write.
func (b *Backend) Set(line int, attr gpio.Attr, v string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.files[key{line, attr}] = v
}

// Get returns the current contents of an attribute.
func (b *Backend) Get(line int, attr gpio.Attr) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.files[key{line, attr}]
}

// Edge sets the value of a line and wakes its waiters once, as the kernel
// does on a transition.
func (b *Backend) Edge(line int, level gpio.Level) {
	b.Set(line, gpio.AttrValue, level.String())
	b.Trigger(line)
}

// Trigger wakes the waiters of a line without changing its value.
func (b *Backend) Trigger(line int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range b.waiters[line] {
		select {
		case w.edges <- struct{}{}:
		default:
		}
	}
}

// Writes returns every recorded write in order.
func (b *Backend) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Write(nil), b.writes...)
}

// WritesTo returns the values written to one attribute in order.
func (b *Backend) WritesTo(line int, attr gpio.Attr) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var values []string
	for _, w := range b.writes {
		if w.Line == line && w.Attr == attr {
			values = append(values, w.Value)
		}
	}
	return values
}

// Reads counts reads of one attribute.
func (b *Backend) Reads(line int, attr gpio.Attr) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.reads[key{line, attr}]
}

// Exported reports whether a line was exported.
func (b *Backend) Exported(line int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exported[line]
}

// Watches counts the waiters ever handed out.
func (b *Backend) Watches() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.watches
}

// ActiveWaiters counts the waiters of a line that haven't been closed.
func (b *Backend) ActiveWaiters(line int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, w := range b.waiters[line] {
		select {
		case <-w.closed:
		default:
			n++
		}
	}
	return n
}

// FailExport makes exporting a line fail.
func (b *Backend) FailExport(line int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failExport[line] = true
}

// FailOpen makes opening an attribute of a line fail.
func (b *Backend) FailOpen(line int, attr gpio.Attr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failOpen[key{line, attr}] = true
}

// FailRead makes reads of an attribute fail.
func (b *Backend) FailRead(line int, attr gpio.Attr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failRead[key{line, attr}] = true
}

// FailWrite makes writes to an attribute fail.
func (b *Backend) FailWrite(line int, attr gpio.Attr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failWrite[key{line, attr}] = true
}

// FailWait makes the next waits on a line return err until cleared with nil.
func (b *Backend) FailWait(line int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.failWait, line)
		return
	}
	b.failWait[line] = err
}

type handle struct {
	b      *Backend
	k      key
	off    int64
	closed bool
}

var errClosed = errors.New("handle closed")

func (h *handle) Read(p []byte) (int, error) {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	if h.closed {
		return 0, errClosed
	}
	if h.b.failRead[h.k] {
		return 0, fmt.Errorf("read of line %d %s failed", h.k.line, h.k.attr)
	}

	h.b.reads[h.k]++

	content := h.b.files[h.k] + "\n"
	if h.off >= int64(len(content)) {
		return 0, io.EOF
	}

	n := copy(p, content[h.off:])
	h.off += int64(n)
	return n, nil
}

// Write replaces the attribute, the way sysfs stores a whole value per write.
func (h *handle) Write(p []byte) (int, error) {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	if h.closed {
		return 0, errClosed
	}
	if h.b.failWrite[h.k] {
		return 0, fmt.Errorf("write to line %d %s failed", h.k.line, h.k.attr)
	}

	h.b.files[h.k] = string(p)
	h.b.writes = append(h.b.writes, Write{Line: h.k.line, Attr: h.k.attr, Value: string(p)})
	return len(p), nil
}

func (h *handle) Seek(offset int64, whence int) (int64, error) {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	if h.closed {
		return 0, errClosed
	}
	if whence != io.SeekStart {
		return 0, errors.New("only io.SeekStart is supported")
	}

	h.off = offset
	return offset, nil
}

func (h *handle) Close() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	if h.closed {
		return errClosed
	}
	h.closed = true
	return nil
}

// Waiter is the gpio.Waiter of the in-memory backend.
type Waiter struct {
	b         *Backend
	line      int
	edges     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (w *Waiter) Wait() error {
	select {
	case <-w.closed:
		return gpio.ErrWaiterClosed
	default:
	}

	w.b.mu.Lock()
	err := w.b.failWait[w.line]
	w.b.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-w.closed:
		return gpio.ErrWaiterClosed
	case <-w.edges:
		return nil
	}
}

func (w *Waiter) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	return nil
}
