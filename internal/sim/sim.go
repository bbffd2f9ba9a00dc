// Package sim provides in-memory hardware for running the controller on a
// host without a real board: a key matrix with timed taps, an
// auto-acknowledging parallel bus, and an LED sink that logs transitions.
package sim

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alia5/STROBE/controller"
	"github.com/Alia5/STROBE/matrix"
)

// Matrix is a simulated key matrix. Presses come from the host process
// (terminal input, tests); the scan path samples them through the same
// strobe/bank interface real hardware exposes.
type Matrix struct {
	geo matrix.Geometry

	mu        sync.Mutex
	active    uint8
	pressed   [matrix.MaxKeys]bool
	releaseAt [matrix.MaxKeys]time.Time
}

// NewMatrix returns an all-keys-up matrix of the given geometry.
func NewMatrix(geo matrix.Geometry) *Matrix {
	return &Matrix{geo: geo}
}

// SetActiveLine implements scan.Matrix.
func (m *Matrix) SetActiveLine(line uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = line
}

// ReadInputBank implements scan.Matrix. Expired taps release on the sample
// that observes them.
func (m *Matrix) ReadInputBank(bank uint8) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var out uint8
	for col := uint8(0); col < m.geo.Cols(); col++ {
		code := m.geo.Scancode(matrix.Position{Row: m.active, Bank: bank, Col: col})
		if !m.pressed[code] {
			continue
		}
		if !m.releaseAt[code].IsZero() && now.After(m.releaseAt[code]) {
			m.pressed[code] = false
			m.releaseAt[code] = time.Time{}
			continue
		}
		out |= 1 << col
	}
	return out
}

// Press closes a key until Release.
func (m *Matrix) Press(code uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressed[code] = true
	m.releaseAt[code] = time.Time{}
}

// Release opens a key.
func (m *Matrix) Release(code uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressed[code] = false
	m.releaseAt[code] = time.Time{}
}

// Tap closes a key and schedules its release after hold. The hold must span
// enough scan cycles to clear the debounce window or the tap vanishes,
// exactly as a too-short physical glitch would.
func (m *Matrix) Tap(code uint8, hold time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressed[code] = true
	m.releaseAt[code] = time.Now().Add(hold)
}

// Bus is a simulated handshake bus whose host side acknowledges every
// request immediately and logs the delivered bytes.
type Bus struct {
	logger *slog.Logger

	mu   sync.Mutex
	data uint8
	req  bool
}

// NewBus returns a Bus logging delivered bytes to logger.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// WriteData implements buspar.Bus.
func (b *Bus) WriteData(v uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = v
}

// SetRequest implements buspar.Bus. Raising the request is the moment the
// simulated host reads the byte.
func (b *Bus) SetRequest(asserted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if asserted && !b.req {
		b.logger.Info("bus byte", "byte", fmt.Sprintf("0x%02X", b.data))
	}
	b.req = asserted
}

// Acked implements buspar.Bus: the simulated host acknowledges as long as
// the request line is up.
func (b *Bus) Acked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.req
}

// Data returns the byte currently latched on the bus lines.
func (b *Bus) Data() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// LEDs logs indicator transitions instead of driving pins.
type LEDs struct {
	logger *slog.Logger

	mu    sync.Mutex
	state map[controller.LED]bool
}

// NewLEDs returns an LED sink logging to logger.
func NewLEDs(logger *slog.Logger) *LEDs {
	if logger == nil {
		logger = slog.Default()
	}
	return &LEDs{logger: logger, state: make(map[controller.LED]bool)}
}

// SetLED implements controller.LEDSink.
func (l *LEDs) SetLED(led controller.LED, on bool) {
	l.mu.Lock()
	changed := l.state[led] != on
	l.state[led] = on
	l.mu.Unlock()
	if changed {
		l.logger.Info("led", "name", led.String(), "on", on)
	}
}

// On reports the current state of one indicator.
func (l *LEDs) On(led controller.LED) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state[led]
}
