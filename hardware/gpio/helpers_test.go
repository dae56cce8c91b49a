package gpio_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udooneo/neo/hardware/gpio"
	"github.com/udooneo/neo/hardware/gpio/gpiotest"
)

const pins = 48

// line maps a pin to its line; offset so tests catch pin/line mixups
func line(pin int) int { return 100 + pin }

func lines() []int {
	l := make([]int, pins)
	for i := range l {
		l[i] = line(i)
	}
	return l
}

func newEngine(t *testing.T, setup ...func(*gpiotest.Backend)) (*gpio.Engine, *gpiotest.Backend) {
	t.Helper()

	b := gpiotest.New()
	for _, s := range setup {
		s(b)
	}

	e := gpio.New(b, lines(), gpio.Options{NoExitHook: true})
	require.NoError(t, e.Init())
	t.Cleanup(func() { _ = e.Free() })

	return e, b
}

type call struct {
	pin   int
	level gpio.Level
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) OnEdge(pin int, level gpio.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call{pin, level})
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]call(nil), r.calls...)
}

// attrWrites filters the write log down to the given attributes of one line.
func attrWrites(b *gpiotest.Backend, l int, attrs ...gpio.Attr) []gpiotest.Write {
	var out []gpiotest.Write
	for _, w := range b.Writes() {
		if w.Line != l {
			continue
		}
		for _, a := range attrs {
			if w.Attr == a {
				out = append(out, w)
			}
		}
	}
	return out
}
