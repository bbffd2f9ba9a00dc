// Package typematic implements keyboard auto-repeat: a held key's down
// event is re-emitted after an initial delay and then at a fixed rate until
// any other event disarms it.
package typematic

import "github.com/Alia5/STROBE/wire"

// Defaults, in dispatch ticks (~1 ms each). Restored by Reset.
const (
	DefaultDelay = 250
	DefaultRate  = 33
)

// Controller tracks the most recent repeatable key-down. It is owned by the
// dispatch loop and needs no locking.
type Controller struct {
	excluded func(code uint8) bool
	delay    int
	rate     int
	count    int
	last     wire.Event
	armed    bool
}

// New returns a Controller with default timing. excluded marks the
// non-repeating scancode class (modifiers, caps-lock); nil excludes
// nothing.
func New(excluded func(code uint8) bool) *Controller {
	return &Controller{
		excluded: excluded,
		delay:    DefaultDelay,
		rate:     DefaultRate,
	}
}

// Observe feeds one dispatched event. A key-down of a non-excluded key arms
// the repeat countdown with the initial delay; any other event disarms it.
func (c *Controller) Observe(e wire.Event) {
	if !e.Up() && (c.excluded == nil || !c.excluded(e.Scancode())) {
		c.last = e
		c.count = c.delay
		c.armed = true
		return
	}
	c.armed = false
	c.count = 0
}

// Tick advances the countdown by one dispatch tick. When it expires, the
// armed event is returned for re-emission and the countdown reloads with
// the repeat interval.
func (c *Controller) Tick() (wire.Event, bool) {
	if !c.armed {
		return 0, false
	}
	c.count--
	if c.count > 0 {
		return 0, false
	}
	c.count = c.rate
	return c.last, true
}

// SetDelay sets the initial delay in ticks. A running countdown is not
// retimed.
func (c *Controller) SetDelay(ticks int) {
	if ticks > 0 {
		c.delay = ticks
	}
}

// SetRate sets the repeat interval in ticks.
func (c *Controller) SetRate(ticks int) {
	if ticks > 0 {
		c.rate = ticks
	}
}

// Delay returns the configured initial delay in ticks.
func (c *Controller) Delay() int { return c.delay }

// Rate returns the configured repeat interval in ticks.
func (c *Controller) Rate() int { return c.rate }

// Armed reports whether a repeat is pending.
func (c *Controller) Armed() bool { return c.armed }

// Reset disarms any pending repeat and restores default timing.
func (c *Controller) Reset() {
	c.armed = false
	c.count = 0
	c.delay = DefaultDelay
	c.rate = DefaultRate
}
