// Package controller owns one keyboard instance: it wires the scan path
// (matrix strobe, debounce, event ring) to the foreground dispatch loop
// (host transport, inbound commands, typematic repeat, LEDs).
//
// Concurrency model: exactly two parties. The scan path runs from a
// periodic tick and may preempt the foreground loop at any point; the
// foreground loop suppresses it only for the few multi-field spans that
// must be atomic (re-initialize), via the scan gate. The event ring crosses
// the boundary lock-free.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alia5/STROBE/matrix"
	"github.com/Alia5/STROBE/queue"
	"github.com/Alia5/STROBE/scan"
	"github.com/Alia5/STROBE/transport"
	"github.com/Alia5/STROBE/typematic"
	"github.com/Alia5/STROBE/wire"
)

// LED identifies one indicator output.
type LED uint8

const (
	LEDCaps LED = iota
	LEDRed
	LEDGreen
	LEDBlue
)

var ledNames = [...]string{"caps", "red", "green", "blue"}

func (l LED) String() string {
	if int(l) < len(ledNames) {
		return ledNames[l]
	}
	return fmt.Sprintf("led(%d)", uint8(l))
}

// AllLEDs lists every indicator, in blanking order.
var AllLEDs = []LED{LEDCaps, LEDRed, LEDGreen, LEDBlue}

// LEDSink receives indicator state changes. Implementations drive real
// output pins or, on a host, log the transitions.
type LEDSink interface {
	SetLED(led LED, on bool)
}

// Defaults for Config zero values.
const (
	DefaultQueueCapacity    = 256
	DefaultScanInterval     = 5 * time.Millisecond // 200 Hz
	DefaultDispatchInterval = time.Millisecond     // 1 kHz
)

// Config describes one keyboard build.
type Config struct {
	// Geometry fixes the matrix shape for the lifetime of the controller.
	Geometry matrix.Geometry

	// DebounceThreshold selects the debounce variant: 0 commits on first
	// mismatch, T > 0 requires the transition window to run T cycles.
	DebounceThreshold uint8

	// QueueCapacity is the event ring size; must be a power of two. Zero
	// means DefaultQueueCapacity.
	QueueCapacity int

	// CapsLockScancode, when non-nil, designates the latching caps-lock
	// key. Its debounced down-edges toggle the latch and synthesize the
	// down/up pair; its physical releases are swallowed.
	CapsLockScancode *uint8

	// NoRepeat marks scancodes excluded from typematic repeat (modifier
	// keys). The caps-lock scancode is always excluded.
	NoRepeat func(code uint8) bool

	// InbandCommands maps reserved scancodes to commands applied by the
	// dispatch loop instead of being sent to the host. Legacy overload of
	// the event channel used by the earliest handshake-bus hosts; new
	// deployments should use the serial command protocol.
	InbandCommands map[uint8]wire.Command

	// TypematicDelay and TypematicRate override the default repeat timing,
	// in dispatch ticks. Zero keeps the defaults.
	TypematicDelay int
	TypematicRate  int

	// ScanInterval and DispatchInterval set the cadence of RunScan and
	// RunDispatch. Zero means the defaults.
	ScanInterval     time.Duration
	DispatchInterval time.Duration

	// Settle and IdleLine pass through to the scanner.
	Settle   func()
	IdleLine *uint8
}

// Controller is one keyboard instance.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	// gate is the critical-section primitive: the scan path holds it for
	// the whole cycle, so foreground code holding it has the scan path
	// suppressed.
	gate    sync.Mutex
	scanner *scan.Scanner
	deb     *scan.Debouncer
	capsOn  bool

	ring *queue.Ring
	tm   *typematic.Controller
	tr   transport.Transport
	cmds transport.CommandSource
	leds LEDSink
}

// New builds a Controller over the given hardware and transport. If the
// transport implements transport.CommandSource its inbound commands are
// polled by the dispatch loop.
func New(cfg Config, hw scan.Matrix, tr transport.Transport, leds LEDSink, logger *slog.Logger) (*Controller, error) {
	if cfg.Geometry.Keys() == 0 {
		return nil, fmt.Errorf("controller requires a non-empty matrix geometry")
	}
	if tr == nil {
		return nil, fmt.Errorf("controller requires a transport")
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.DispatchInterval == 0 {
		cfg.DispatchInterval = DefaultDispatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ring, err := queue.New(cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:    cfg,
		logger: logger,
		ring:   ring,
		tr:     tr,
		leds:   leds,
	}
	if src, ok := tr.(transport.CommandSource); ok {
		c.cmds = src
	}

	c.scanner = scan.NewScanner(cfg.Geometry, hw, scan.Config{
		Settle:   cfg.Settle,
		IdleLine: cfg.IdleLine,
	})
	c.deb = scan.NewDebouncer(cfg.Geometry, cfg.DebounceThreshold, c.onTransition)

	c.tm = typematic.New(func(code uint8) bool {
		if cfg.CapsLockScancode != nil && code == *cfg.CapsLockScancode {
			return true
		}
		return cfg.NoRepeat != nil && cfg.NoRepeat(code)
	})
	c.tm.SetDelay(cfg.TypematicDelay)
	c.tm.SetRate(cfg.TypematicRate)

	return c, nil
}

// onTransition receives debounced transitions on the scan path and routes
// them into the ring. The caps-lock key never passes through raw: its
// down-edges toggle the latch and synthesize the matching event, its
// up-edges vanish.
func (c *Controller) onTransition(e wire.Event) {
	if c.cfg.CapsLockScancode != nil && e.Scancode() == *c.cfg.CapsLockScancode {
		if e.Up() {
			return
		}
		c.capsOn = !c.capsOn
		if c.capsOn {
			c.ring.Push(wire.KeyDown(e.Scancode()))
		} else {
			c.ring.Push(wire.KeyUp(e.Scancode()))
		}
		return
	}
	c.ring.Push(e)
}

// ScanCycle runs one full matrix scan plus debounce. This is the preemptive
// path; it holds the scan gate for the whole cycle and never blocks on the
// host.
func (c *Controller) ScanCycle() {
	c.gate.Lock()
	defer c.gate.Unlock()
	c.deb.Update(c.scanner.Cycle())
}

// DispatchOnce performs one foreground tick: drains the ring to the host,
// feeds typematic, applies pending inbound commands and emits a due repeat.
// Embedders that own their own loop call this at ~1 kHz.
func (c *Controller) DispatchOnce() error {
	for {
		e, ok := c.ring.Pop()
		if !ok {
			break
		}
		if cmd, ok := c.cfg.InbandCommands[e.Scancode()]; ok {
			if !e.Up() {
				c.apply(cmd)
			}
			continue
		}
		if err := c.tr.SendEvent(e); err != nil {
			return err
		}
		c.logger.Debug("sent event", "event", e.String())
		c.tm.Observe(e)
	}

	if c.cmds != nil {
		for {
			cmd, ok := c.cmds.PollCommand()
			if !ok {
				break
			}
			c.apply(cmd)
		}
	}

	if e, ok := c.tm.Tick(); ok {
		if err := c.tr.SendEvent(e); err != nil {
			return err
		}
		c.logger.Debug("typematic repeat", "event", e.String())
	}
	return nil
}

// apply executes one decoded host command on the foreground side.
func (c *Controller) apply(cmd wire.Command) {
	switch cmd.Type {
	case wire.TypeDelay:
		c.tm.SetDelay(cmd.Ticks())
		c.logger.Debug("typematic delay set", "ticks", cmd.Ticks())
	case wire.TypeRate:
		c.tm.SetRate(cmd.Ticks())
		c.logger.Debug("typematic rate set", "ticks", cmd.Ticks())
	case wire.TypeRegular:
		switch cmd.Value {
		case wire.RegInit:
			c.Reinit()
		case wire.RegCapsLEDOn:
			c.setLED(LEDCaps, true)
		case wire.RegCapsLEDOff:
			c.setLED(LEDCaps, false)
		case wire.RegRedLEDOn:
			c.setLED(LEDRed, true)
		case wire.RegRedLEDOff:
			c.setLED(LEDRed, false)
		case wire.RegGreenLEDOn:
			c.setLED(LEDGreen, true)
		case wire.RegGreenLEDOff:
			c.setLED(LEDGreen, false)
		case wire.RegBlueLEDOn:
			c.setLED(LEDBlue, true)
		case wire.RegBlueLEDOff:
			c.setLED(LEDBlue, false)
		}
	}
}

func (c *Controller) setLED(led LED, on bool) {
	if c.leds != nil {
		c.leds.SetLED(led, on)
	}
}

// Reinit restores power-on state: key state, debounce counters, the event
// ring, the caps-lock latch, typematic defaults, and all LEDs off. The
// per-key clearing runs under the scan gate so the scan path never sees a
// half-cleared table. This is the only recovery path from a presumed
// desynchronized host.
func (c *Controller) Reinit() {
	c.gate.Lock()
	c.deb.Reset()
	c.capsOn = false
	c.ring.Reset()
	c.gate.Unlock()

	c.tm.Reset()
	for _, led := range AllLEDs {
		c.setLED(led, false)
	}
	c.logger.Info("re-initialized")
}

// CapsLocked reports the caps-lock latch state.
func (c *Controller) CapsLocked() bool {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.capsOn
}

// KeyDown reports the last confirmed state of a key.
func (c *Controller) KeyDown(code uint8) bool {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.deb.Down(code)
}

// Pending returns the number of undelivered events in the ring.
func (c *Controller) Pending() int {
	return c.ring.Len()
}

// Dropped returns how many events were discarded on ring overflow.
func (c *Controller) Dropped() uint64 {
	return c.ring.Dropped()
}

// RunScan drives ScanCycle at the configured cadence until ctx is done.
func (c *Controller) RunScan(ctx context.Context) {
	tick := time.NewTicker(c.cfg.ScanInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.ScanCycle()
		}
	}
}

// RunDispatch drives DispatchOnce at the configured cadence until ctx is
// done or the transport fails.
func (c *Controller) RunDispatch(ctx context.Context) error {
	tick := time.NewTicker(c.cfg.DispatchInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := c.DispatchOnce(); err != nil {
				return fmt.Errorf("dispatch: %w", err)
			}
		}
	}
}

// Run starts the scan tick and the dispatch loop and blocks until ctx is
// done or the transport fails.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.logger.Info("keyboard controller running",
		"keys", c.cfg.Geometry.Keys(),
		"debounce", c.cfg.DebounceThreshold,
		"scan_interval", c.cfg.ScanInterval,
	)

	go c.RunScan(ctx)
	return c.RunDispatch(ctx)
}
