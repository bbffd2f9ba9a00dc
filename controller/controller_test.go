package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/STROBE/controller"
	"github.com/Alia5/STROBE/internal/sim"
	"github.com/Alia5/STROBE/matrix"
	"github.com/Alia5/STROBE/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureTransport records sent events and feeds queued host commands.
type captureTransport struct {
	mu     sync.Mutex
	events []wire.Event
	cmds   []wire.Command
}

func (t *captureTransport) SendEvent(e wire.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	return nil
}

func (t *captureTransport) PollCommand() (wire.Command, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.cmds) == 0 {
		return wire.Command{}, false
	}
	cmd := t.cmds[0]
	t.cmds = t.cmds[1:]
	return cmd, true
}

func (t *captureTransport) host(cmds ...wire.Command) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmds = append(t.cmds, cmds...)
}

func (t *captureTransport) sent() []wire.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.Event, len(t.events))
	copy(out, t.events)
	return out
}

type ledRecorder struct {
	mu    sync.Mutex
	state map[controller.LED]bool
}

func newLEDRecorder() *ledRecorder {
	return &ledRecorder{state: make(map[controller.LED]bool)}
}

func (l *ledRecorder) SetLED(led controller.LED, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state[led] = on
}

func (l *ledRecorder) on(led controller.LED) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state[led]
}

func newTestController(t *testing.T, cfg controller.Config) (*controller.Controller, *sim.Matrix, *captureTransport, *ledRecorder) {
	t.Helper()
	if cfg.Geometry.Keys() == 0 {
		cfg.Geometry = matrix.Square8x8()
	}
	cfg.Settle = func() {}
	hw := sim.NewMatrix(cfg.Geometry)
	tr := &captureTransport{}
	leds := newLEDRecorder()
	ctrl, err := controller.New(cfg, hw, tr, leds, nil)
	require.NoError(t, err)
	return ctrl, hw, tr, leds
}

func scanN(ctrl *controller.Controller, n int) {
	for i := 0; i < n; i++ {
		ctrl.ScanCycle()
	}
}

func TestKeyPressEndToEnd(t *testing.T) {
	ctrl, hw, tr, _ := newTestController(t, controller.Config{DebounceThreshold: 5})

	hw.Press(0x15) // row 2, col 5
	scanN(ctrl, 5)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Empty(t, tr.sent(), "nothing commits before the debounce window closes")

	scanN(ctrl, 1)
	require.NoError(t, ctrl.DispatchOnce())
	require.Equal(t, []wire.Event{wire.KeyDown(0x15)}, tr.sent())
	assert.Equal(t, uint8(0x15), tr.sent()[0].Byte(), "wire byte for the 8x8 example key")
	assert.True(t, ctrl.KeyDown(0x15))

	hw.Release(0x15)
	scanN(ctrl, 6)
	require.NoError(t, ctrl.DispatchOnce())
	require.Equal(t, []wire.Event{wire.KeyDown(0x15), wire.KeyUp(0x15)}, tr.sent())
	assert.Equal(t, uint8(0x95), tr.sent()[1].Byte())
	assert.False(t, ctrl.KeyDown(0x15))
}

func TestCapsLockLatch(t *testing.T) {
	caps := uint8(0x2A)
	ctrl, hw, tr, _ := newTestController(t, controller.Config{
		DebounceThreshold: 2,
		CapsLockScancode:  &caps,
	})

	// First physical press: latch sets, synthetic down goes out.
	hw.Press(caps)
	scanN(ctrl, 3)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Equal(t, []wire.Event{wire.KeyDown(caps)}, tr.sent())
	assert.True(t, ctrl.CapsLocked())

	// Physical release is swallowed, however long the key was held.
	hw.Release(caps)
	scanN(ctrl, 3)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Equal(t, []wire.Event{wire.KeyDown(caps)}, tr.sent())
	assert.True(t, ctrl.CapsLocked())

	// Second physical press: latch clears, synthetic up goes out.
	hw.Press(caps)
	scanN(ctrl, 3)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Equal(t, []wire.Event{wire.KeyDown(caps), wire.KeyUp(caps)}, tr.sent())
	assert.False(t, ctrl.CapsLocked())

	hw.Release(caps)
	scanN(ctrl, 3)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Len(t, tr.sent(), 2)
}

func TestHostCommandsDriveLEDsAndTiming(t *testing.T) {
	ctrl, _, tr, leds := newTestController(t, controller.Config{DebounceThreshold: 0})

	capsOn, _ := wire.DecodeCommand(0x01)
	redOn, _ := wire.DecodeCommand(0x03)
	tr.host(capsOn, redOn)
	require.NoError(t, ctrl.DispatchOnce())
	assert.True(t, leds.on(controller.LEDCaps))
	assert.True(t, leds.on(controller.LEDRed))

	capsOff, _ := wire.DecodeCommand(0x02)
	tr.host(capsOff)
	require.NoError(t, ctrl.DispatchOnce())
	assert.False(t, leds.on(controller.LEDCaps))
	assert.True(t, leds.on(controller.LEDRed))
}

func TestReinitCommandRestoresPowerOnState(t *testing.T) {
	ctrl, hw, tr, leds := newTestController(t, controller.Config{DebounceThreshold: 2})

	redOn, _ := wire.DecodeCommand(0x03)
	tr.host(redOn)
	hw.Press(0x15)
	scanN(ctrl, 3)
	require.NoError(t, ctrl.DispatchOnce())
	require.Equal(t, []wire.Event{wire.KeyDown(0x15)}, tr.sent())
	require.True(t, leds.on(controller.LEDRed))

	init, _ := wire.DecodeCommand(0x00)
	tr.host(init)
	require.NoError(t, ctrl.DispatchOnce())

	assert.False(t, ctrl.KeyDown(0x15), "confirmed state cleared")
	assert.Equal(t, 0, ctrl.Pending(), "ring drained")
	assert.False(t, leds.on(controller.LEDRed), "LEDs blanked")
	assert.False(t, ctrl.CapsLocked())

	// The key is still physically held; it debounces back to down as a
	// fresh press, so the host resynchronizes on the next interaction.
	scanN(ctrl, 3)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Equal(t, []wire.Event{wire.KeyDown(0x15), wire.KeyDown(0x15)}, tr.sent())
}

func TestTypematicRepeatThroughDispatch(t *testing.T) {
	ctrl, hw, tr, _ := newTestController(t, controller.Config{
		DebounceThreshold: 0,
		TypematicDelay:    3,
		TypematicRate:     2,
	})

	hw.Press(0x15)
	scanN(ctrl, 1)

	// Dispatch 1 sends the down and starts the delay countdown (the same
	// tick also counts). Repeats land on ticks 3 and 5.
	wantPerTick := [][]wire.Event{
		1: {wire.KeyDown(0x15)},
		2: {wire.KeyDown(0x15)},
		3: {wire.KeyDown(0x15), wire.KeyDown(0x15)},
		4: {wire.KeyDown(0x15), wire.KeyDown(0x15)},
		5: {wire.KeyDown(0x15), wire.KeyDown(0x15), wire.KeyDown(0x15)},
	}
	for tick := 1; tick <= 5; tick++ {
		require.NoError(t, ctrl.DispatchOnce())
		assert.Equal(t, wantPerTick[tick], tr.sent(), "after dispatch tick %d", tick)
	}

	// Release stops the repeat.
	hw.Release(0x15)
	scanN(ctrl, 1)
	require.NoError(t, ctrl.DispatchOnce())
	n := len(tr.sent())
	assert.Equal(t, wire.KeyUp(0x15), tr.sent()[n-1])
	for i := 0; i < 10; i++ {
		require.NoError(t, ctrl.DispatchOnce())
	}
	assert.Len(t, tr.sent(), n, "no repeats after key-up")
}

func TestNoRepeatClassIsExcluded(t *testing.T) {
	ctrl, hw, tr, _ := newTestController(t, controller.Config{
		DebounceThreshold: 0,
		TypematicDelay:    2,
		TypematicRate:     1,
		NoRepeat:          func(code uint8) bool { return code == 0x2A },
	})

	hw.Press(0x2A)
	scanN(ctrl, 1)
	for i := 0; i < 10; i++ {
		require.NoError(t, ctrl.DispatchOnce())
	}
	assert.Equal(t, []wire.Event{wire.KeyDown(0x2A)}, tr.sent(), "modifier emits once and never repeats")
}

func TestInbandCommandScancode(t *testing.T) {
	redOn, _ := wire.DecodeCommand(0x03)
	ctrl, hw, tr, leds := newTestController(t, controller.Config{
		DebounceThreshold: 0,
		InbandCommands:    map[uint8]wire.Command{0x3F: redOn},
	})

	hw.Press(0x3F)
	scanN(ctrl, 1)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Empty(t, tr.sent(), "reserved scancode never reaches the host")
	assert.True(t, leds.on(controller.LEDRed))

	// Its release is consumed as well.
	hw.Release(0x3F)
	scanN(ctrl, 1)
	require.NoError(t, ctrl.DispatchOnce())
	assert.Empty(t, tr.sent())
}

func TestRunDeliversEventsConcurrently(t *testing.T) {
	ctrl, hw, tr, _ := newTestController(t, controller.Config{
		DebounceThreshold: 2,
		ScanInterval:      time.Millisecond,
		DispatchInterval:  time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	hw.Tap(0x15, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		sent := tr.sent()
		return len(sent) >= 2 &&
			sent[0] == wire.KeyDown(0x15) &&
			sent[len(sent)-1] == wire.KeyUp(0x15)
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
