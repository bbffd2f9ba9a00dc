// Package wire defines the byte formats shared with the host: the one-byte
// key event and the one-byte inbound command.
package wire

import "fmt"

// Event is one key transition on the wire. Bit 7 is set for key-up, clear
// for key-down; bits 6..0 carry the scancode. Immutable once produced.
type Event uint8

// dirUp is the key-up flag bit.
const dirUp Event = 0x80

// KeyDown returns the key-down event for a scancode.
func KeyDown(code uint8) Event {
	return Event(code &^ 0x80)
}

// KeyUp returns the key-up event for a scancode.
func KeyUp(code uint8) Event {
	return Event(code&^0x80) | dirUp
}

// Scancode returns the event's key position.
func (e Event) Scancode() uint8 {
	return uint8(e) &^ 0x80
}

// Up reports whether the event is a key release.
func (e Event) Up() bool {
	return e&dirUp != 0
}

// Byte returns the wire representation.
func (e Event) Byte() uint8 {
	return uint8(e)
}

func (e Event) String() string {
	dir := "down"
	if e.Up() {
		dir = "up"
	}
	return fmt.Sprintf("key-%s(0x%02X)", dir, e.Scancode())
}

// CommandType is the 2-bit type field of an inbound command byte.
type CommandType uint8

const (
	// TypeRegular selects one of the fixed Reg* command values.
	TypeRegular CommandType = 0
	// TypeDelay sets the typematic initial delay to Value<<2 ticks.
	TypeDelay CommandType = 1
	// TypeRate sets the typematic repeat interval to Value<<2 ticks.
	TypeRate CommandType = 2
)

// Regular command values.
const (
	RegInit        = 0
	RegCapsLEDOn   = 1
	RegCapsLEDOff  = 2
	RegRedLEDOn    = 3
	RegRedLEDOff   = 4
	RegGreenLEDOn  = 5
	RegGreenLEDOff = 6
	RegBlueLEDOn   = 7
	RegBlueLEDOff  = 8
)

// regMax is the highest assigned regular command value.
const regMax = RegBlueLEDOff

// Command is a decoded host command byte: a 2-bit type and 6-bit value.
type Command struct {
	Type  CommandType
	Value uint8
}

// DecodeCommand decodes an inbound byte of the form [TT VVVVVV]. Unknown
// type/value combinations report ok=false and are to be silently ignored,
// never treated as errors.
func DecodeCommand(b uint8) (cmd Command, ok bool) {
	t := CommandType(b >> 6)
	v := b & 0x3F
	switch t {
	case TypeRegular:
		if v > regMax {
			return Command{}, false
		}
	case TypeDelay, TypeRate:
	default:
		return Command{}, false
	}
	return Command{Type: t, Value: v}, true
}

// Byte returns the wire representation of the command.
func (c Command) Byte() uint8 {
	return uint8(c.Type)<<6 | c.Value&0x3F
}

// Ticks returns the timing interval a DELAY or RATE command encodes.
func (c Command) Ticks() int {
	return int(c.Value) << 2
}

func (c Command) String() string {
	switch c.Type {
	case TypeDelay:
		return fmt.Sprintf("delay(%d)", c.Ticks())
	case TypeRate:
		return fmt.Sprintf("rate(%d)", c.Ticks())
	default:
		return fmt.Sprintf("regular(%d)", c.Value)
	}
}
