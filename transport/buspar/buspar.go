// Package buspar implements the handshaked parallel-bus transport: one
// byte-wide data register plus a request/acknowledge line pair. Between
// events the bus holds a reserved idle byte so a host sampling it at an
// arbitrary time never misreads a stale scancode.
package buspar

import (
	"log/slog"
	"time"

	"github.com/Alia5/STROBE/wire"
)

// Bus is the hardware seam for the parallel transport. Line polarity is an
// electrical property of the implementation; logically SetRequest(true)
// means "byte valid, please take it" and Acked() true means the host has.
type Bus interface {
	// WriteData latches one byte onto the bus data lines.
	WriteData(b uint8)
	// SetRequest drives the request handshake line.
	SetRequest(asserted bool)
	// Acked samples the host's acknowledge line.
	Acked() bool
}

// DefaultIdleByte is the reserved no-data value, outside the event range a
// 64-key matrix produces.
const DefaultIdleByte = 0x40

// Config tunes a Transport.
type Config struct {
	// IdleByte is held on the data lines between events. Zero means
	// DefaultIdleByte.
	IdleByte uint8
	// AckPoll spaces the acknowledge polls. Zero busy-polls, matching the
	// microsecond-granularity wait of the original bus contract.
	AckPoll time.Duration
}

// Transport is the handshake-bus host transport. It is outbound only; this
// bus has no inbound command channel.
type Transport struct {
	bus    Bus
	cfg    Config
	logger *slog.Logger
}

// New returns a Transport over bus and parks the data lines at the idle
// byte.
func New(bus Bus, cfg Config, logger *slog.Logger) *Transport {
	if cfg.IdleByte == 0 {
		cfg.IdleByte = DefaultIdleByte
	}
	if logger == nil {
		logger = slog.Default()
	}
	bus.SetRequest(false)
	bus.WriteData(cfg.IdleByte)
	return &Transport{bus: bus, cfg: cfg, logger: logger}
}

// IdleByte returns the configured reserved no-data value.
func (t *Transport) IdleByte() uint8 {
	return t.cfg.IdleByte
}

// SendEvent latches the event byte, raises the request line and waits for
// the host's acknowledge before restoring the idle byte. The wait has no
// timeout: a non-responding host stalls delivery while scanning continues
// and the event ring bounds the backlog.
func (t *Transport) SendEvent(e wire.Event) error {
	t.bus.WriteData(e.Byte())
	t.bus.SetRequest(true)
	for !t.bus.Acked() {
		if t.cfg.AckPoll > 0 {
			time.Sleep(t.cfg.AckPoll)
		}
	}
	t.bus.SetRequest(false)
	t.bus.WriteData(t.cfg.IdleByte)
	return nil
}
