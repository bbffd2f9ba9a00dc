// Package transport defines the host-facing capability interface the event
// pipeline depends on. Concrete transports live in the serial and buspar
// subpackages; the pipeline never sees past these interfaces.
package transport

import "github.com/Alia5/STROBE/wire"

// Transport delivers events to the host. SendEvent may block on host flow
// control (bounded only by the host honoring its side of the contract) but
// never drops or reorders events.
type Transport interface {
	SendEvent(e wire.Event) error
}

// CommandSource is implemented by transports with an inbound command
// channel. PollCommand never blocks; it reports the next pending command,
// if any. Malformed or unknown command bytes are dropped before they reach
// the poller.
type CommandSource interface {
	PollCommand() (wire.Command, bool)
}
