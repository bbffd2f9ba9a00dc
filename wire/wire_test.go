package wire_test

import (
	"testing"

	"github.com/Alia5/STROBE/wire"
	"github.com/stretchr/testify/assert"
)

func TestEventEncoding(t *testing.T) {
	down := wire.KeyDown(0x15)
	assert.Equal(t, uint8(0x15), down.Byte())
	assert.Equal(t, uint8(0x15), down.Scancode())
	assert.False(t, down.Up())

	up := wire.KeyUp(0x15)
	assert.Equal(t, uint8(0x95), up.Byte())
	assert.Equal(t, uint8(0x15), up.Scancode())
	assert.True(t, up.Up())
}

func TestEventConstructorsMaskDirectionBit(t *testing.T) {
	// A scancode with bit 7 set is a caller bug; the constructors keep the
	// direction bit authoritative anyway.
	assert.False(t, wire.KeyDown(0x95).Up())
	assert.Equal(t, uint8(0x15), wire.KeyDown(0x95).Scancode())
	assert.True(t, wire.KeyUp(0x95).Up())
}

func TestDecodeCommand(t *testing.T) {
	cases := []struct {
		name string
		b    uint8
		ok   bool
		cmd  wire.Command
	}{
		{"init", 0x00, true, wire.Command{Type: wire.TypeRegular, Value: wire.RegInit}},
		{"caps led on", 0x01, true, wire.Command{Type: wire.TypeRegular, Value: wire.RegCapsLEDOn}},
		{"blue led off", 0x08, true, wire.Command{Type: wire.TypeRegular, Value: wire.RegBlueLEDOff}},
		{"unassigned regular", 0x09, false, wire.Command{}},
		{"delay", 0x41, true, wire.Command{Type: wire.TypeDelay, Value: 1}},
		{"max delay", 0x7F, true, wire.Command{Type: wire.TypeDelay, Value: 0x3F}},
		{"rate", 0x8A, true, wire.Command{Type: wire.TypeRate, Value: 0x0A}},
		{"reserved type", 0xC0, false, wire.Command{}},
		{"reserved type max", 0xFF, false, wire.Command{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := wire.DecodeCommand(tc.b)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.cmd, cmd)
			if ok {
				assert.Equal(t, tc.b, cmd.Byte())
			}
		})
	}
}

func TestCommandTicks(t *testing.T) {
	cmd, ok := wire.DecodeCommand(0x41)
	assert.True(t, ok)
	assert.Equal(t, 4, cmd.Ticks())

	cmd, ok = wire.DecodeCommand(0xBF)
	assert.True(t, ok)
	assert.Equal(t, wire.TypeRate, cmd.Type)
	assert.Equal(t, 252, cmd.Ticks())
}
