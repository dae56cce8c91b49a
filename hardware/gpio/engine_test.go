package gpio_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udooneo/neo/hardware/gpio"
	"github.com/udooneo/neo/hardware/gpio/gpiotest"
)

func TestInitMarksPinsUsableIndividually(t *testing.T) {
	b := gpiotest.New()
	b.FailOpen(line(5), gpio.AttrEdge)

	e := gpio.New(b, lines(), gpio.Options{NoExitHook: true})
	err := e.Init()
	t.Cleanup(func() { _ = e.Free() })

	require.Error(t, err)
	assert.True(t, errors.Is(err, gpio.ErrUnusable))

	for pin := 0; pin < pins; pin++ {
		assert.True(t, b.Exported(line(pin)), "pin %d not exported", pin)
		assert.Equal(t, pin != 5, e.IsUsable(pin), "pin %d", pin)
	}

	// the other pins keep working
	require.NoError(t, e.SetMode(4, gpio.Out))
	require.NoError(t, e.Write(4, gpio.High))

	err = e.Write(5, gpio.High)
	assert.True(t, errors.Is(err, gpio.ErrUnusable))
}

func TestInitReportsWorstCode(t *testing.T) {
	b := gpiotest.New()
	b.FailExport(line(1))
	b.FailOpen(line(2), gpio.AttrValue)

	e := gpio.New(b, lines(), gpio.Options{NoExitHook: true})
	err := e.Init()
	t.Cleanup(func() { _ = e.Free() })

	assert.Equal(t, gpio.ErrUnusableExport, gpio.CodeOf(err))

	// a failed export doesn't matter when the handles still open
	assert.True(t, e.IsUsable(1))
	assert.False(t, e.IsUsable(2))
}

func TestInitAndFreeAreIdempotent(t *testing.T) {
	b := gpiotest.New()
	e := gpio.New(b, lines(), gpio.Options{NoExitHook: true})

	require.NoError(t, e.Free(), "free before init")
	require.NoError(t, e.Init())
	require.NoError(t, e.Init())
	assert.True(t, e.IsUsable(0))

	require.NoError(t, e.Free())
	require.NoError(t, e.Free())
	assert.False(t, e.IsUsable(0))

	_, err := e.Read(0)
	assert.True(t, errors.Is(err, gpio.ErrUnusable))

	// the table can be brought back after a free
	require.NoError(t, e.Init())
	assert.True(t, e.IsUsable(0))
	require.NoError(t, e.Free())
}

func TestOperationsBeforeInit(t *testing.T) {
	e := gpio.New(gpiotest.New(), lines(), gpio.Options{NoExitHook: true})

	assert.True(t, errors.Is(e.SetMode(0, gpio.Out), gpio.ErrUnusable))
	assert.True(t, errors.Is(e.Write(0, gpio.High), gpio.ErrUnusable))
	assert.True(t, errors.Is(e.WritePWM(0, 10, 1000), gpio.ErrUnusable))
	assert.False(t, e.IsUsable(0))
}

func TestPinOutOfRange(t *testing.T) {
	e, _ := newEngine(t)
	h := gpio.HandlerFunc(func(int, gpio.Level) {})

	for _, pin := range []int{-1, pins, pins + 10} {
		assert.True(t, errors.Is(e.SetMode(pin, gpio.Out), gpio.ErrPin))
		assert.True(t, errors.Is(e.Write(pin, gpio.High), gpio.ErrPin))
		_, err := e.Read(pin)
		assert.True(t, errors.Is(err, gpio.ErrPin))
		assert.True(t, errors.Is(e.WritePWM(pin, 10, 1000), gpio.ErrPin))
		assert.True(t, errors.Is(e.Attach(pin, "both", h), gpio.ErrPin))
		assert.True(t, errors.Is(e.Detach(pin), gpio.ErrPin))
		assert.False(t, e.IsUsable(pin))
	}
}

func TestSetModeRejectsBadDirection(t *testing.T) {
	e, b := newEngine(t)

	err := e.SetMode(3, gpio.Direction(7))
	assert.True(t, errors.Is(err, gpio.ErrDir))
	assert.Empty(t, b.Writes())
}

func TestSetModeOutputDisablesEdgeFirst(t *testing.T) {
	e, b := newEngine(t, func(b *gpiotest.Backend) {
		b.Set(line(3), gpio.AttrEdge, "both")
	})

	require.NoError(t, e.SetMode(3, gpio.Out))

	assert.Equal(t, []gpiotest.Write{
		{Line: line(3), Attr: gpio.AttrEdge, Value: "none"},
		{Line: line(3), Attr: gpio.AttrDirection, Value: "out"},
	}, attrWrites(b, line(3), gpio.AttrEdge, gpio.AttrDirection))

	dir, err := e.Mode(3)
	require.NoError(t, err)
	assert.Equal(t, gpio.Out, dir)
}

func TestSetModeInputLeavesEdgeAlone(t *testing.T) {
	e, b := newEngine(t, func(b *gpiotest.Backend) {
		b.Set(line(3), gpio.AttrEdge, "rising")
	})

	require.NoError(t, e.SetMode(3, gpio.In))
	assert.Empty(t, b.WritesTo(line(3), gpio.AttrEdge))
	assert.Equal(t, []string{"in"}, b.WritesTo(line(3), gpio.AttrDirection))
}

func TestReadOutputUsesCache(t *testing.T) {
	e, b := newEngine(t)

	require.NoError(t, e.SetMode(7, gpio.Out))
	require.NoError(t, e.Write(7, gpio.High))
	assert.Equal(t, "1", b.Get(line(7), gpio.AttrValue))

	level, err := e.Read(7)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, level)
	assert.Zero(t, b.Reads(line(7), gpio.AttrValue), "value handle was read")
}

func TestWriteInputSetsPull(t *testing.T) {
	e, b := newEngine(t)

	require.NoError(t, e.SetMode(12, gpio.In))
	require.NoError(t, e.Write(12, gpio.High))

	assert.Equal(t, []string{"1"}, b.WritesTo(line(12), gpio.AttrActiveLow))
	assert.Empty(t, b.WritesTo(line(12), gpio.AttrValue))
}

func TestWriteRejectsBadLevel(t *testing.T) {
	e, b := newEngine(t)

	require.NoError(t, e.SetMode(3, gpio.Out))
	err := e.Write(3, gpio.Level(2))
	assert.True(t, errors.Is(err, gpio.ErrDir))
	assert.Empty(t, b.WritesTo(line(3), gpio.AttrValue))
}

func TestReadInput(t *testing.T) {
	e, b := newEngine(t)

	b.Set(line(9), gpio.AttrValue, "1")
	level, err := e.Read(9)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, level)
	assert.Equal(t, 1, b.Reads(line(9), gpio.AttrValue))

	b.Set(line(9), gpio.AttrValue, "0")
	level, err = e.Read(9)
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, level)

	b.Set(line(9), gpio.AttrValue, "x")
	_, err = e.Read(9)
	assert.True(t, errors.Is(err, gpio.ErrRead))

	b.FailRead(line(9), gpio.AttrValue)
	_, err = e.Read(9)
	assert.True(t, errors.Is(err, gpio.ErrRead))
}

func TestInitLoadsDirection(t *testing.T) {
	e, b := newEngine(t, func(b *gpiotest.Backend) {
		b.Set(line(4), gpio.AttrDirection, "out")
	})

	dir, err := e.Mode(4)
	require.NoError(t, err)
	assert.Equal(t, gpio.Out, dir)

	_, err = e.Read(4)
	require.NoError(t, err)
	assert.Zero(t, b.Reads(line(4), gpio.AttrValue))
}

func TestSnapshot(t *testing.T) {
	e, _ := newEngine(t)

	require.NoError(t, e.SetMode(2, gpio.Out))
	require.NoError(t, e.Write(2, gpio.High))
	require.NoError(t, e.Attach(3, "rising", &recorder{}))

	info, err := e.Snapshot(2)
	require.NoError(t, err)
	assert.Equal(t, gpio.PinInfo{Pin: 2, Line: line(2), Usable: true, Direction: gpio.Out, Level: gpio.High, Edge: gpio.EdgeNone}, info)

	info, err = e.Snapshot(3)
	require.NoError(t, err)
	assert.True(t, info.Interrupt)
	assert.Equal(t, gpio.Rising, info.Edge)

	all, err := e.Snapshots()
	require.NoError(t, err)
	assert.Len(t, all, pins)
}

func TestFreeStopsWorkersBeforeClosing(t *testing.T) {
	b := gpiotest.New()
	e := gpio.New(b, lines(), gpio.Options{NoExitHook: true})
	require.NoError(t, e.Init())

	require.NoError(t, e.WritePWM(2, 128, 1000000))
	require.NoError(t, e.Attach(3, "both", &recorder{}))
	require.Equal(t, 1, b.ActiveWaiters(line(3)))

	require.NoError(t, e.Free())

	assert.Zero(t, gpio.LiveTasks(e))
	assert.Zero(t, b.ActiveWaiters(line(3)))

	edges := b.WritesTo(line(3), gpio.AttrEdge)
	assert.Equal(t, "none", edges[len(edges)-1])

	values := b.WritesTo(line(2), gpio.AttrValue)
	assert.Equal(t, "0", values[len(values)-1])

	// nothing writes once the handles are closed
	n := len(b.Writes())
	b.Trigger(line(3))
	assert.Len(t, b.Writes(), n)
}
