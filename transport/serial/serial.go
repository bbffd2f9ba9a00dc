// Package serial implements the command-protocol transport: outbound
// events as single bytes on an asynchronous serial line, inbound one-byte
// host commands decoded off the same line.
package serial

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Alia5/STROBE/wire"
)

// commandBacklog bounds how many decoded commands can be pending before the
// dispatch loop polls them. The host sends commands rarely; overflow drops
// the newest, mirroring the drop-don't-block rule everywhere else.
const commandBacklog = 16

// Transport is the serial host transport. A reader goroutine drains the
// line into a buffered channel so PollCommand never blocks the dispatch
// loop.
type Transport struct {
	w      io.Writer
	cmds   chan wire.Command
	logger *slog.Logger
}

// New returns a Transport over rw and starts its inbound reader. The reader
// exits when rw's read side reports an error (line closed).
func New(rw io.ReadWriter, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		w:      rw,
		cmds:   make(chan wire.Command, commandBacklog),
		logger: logger,
	}
	go t.readLoop(rw)
	return t
}

// SendEvent writes the event byte to the line. The write blocks only on
// transmit readiness of the underlying writer.
func (t *Transport) SendEvent(e wire.Event) error {
	if _, err := t.w.Write([]byte{e.Byte()}); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// PollCommand returns the next pending host command without blocking.
func (t *Transport) PollCommand() (wire.Command, bool) {
	select {
	case cmd := <-t.cmds:
		return cmd, true
	default:
		return wire.Command{}, false
	}
}

func (t *Transport) readLoop(r io.Reader) {
	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if err != nil {
			if err != io.EOF {
				t.logger.Debug("serial reader stopped", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		cmd, ok := wire.DecodeCommand(buf[0])
		if !ok {
			t.logger.Debug("ignoring unknown command byte", "byte", fmt.Sprintf("0x%02X", buf[0]))
			continue
		}
		select {
		case t.cmds <- cmd:
		default:
			t.logger.Warn("command backlog full, dropping", "command", cmd.String())
		}
	}
}
