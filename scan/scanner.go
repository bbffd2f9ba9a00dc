// Package scan drives the key matrix: it strobes each output line in turn,
// samples the input banks, and debounces the raw closures into confirmed
// key transitions.
package scan

import (
	"time"

	"github.com/Alia5/STROBE/matrix"
)

// Matrix is the hardware seam for one scan cycle. Implementations own pin
// directions, pull-ups and electrical polarity; the logical contract is that
// a set bit from ReadInputBank means the key at that column is pressed.
type Matrix interface {
	// SetActiveLine asserts exactly one strobe line.
	SetActiveLine(line uint8)
	// ReadInputBank samples the input lines of one bank for the currently
	// active strobe line. Bit n set means the key at column n is pressed.
	ReadInputBank(bank uint8) uint8
}

// DefaultSettle is the wait between asserting a strobe line and sampling,
// sized for electrical propagation across the matrix.
const DefaultSettle = 10 * time.Microsecond

// Config tunes a Scanner.
type Config struct {
	// Settle is called between strobe and sample. Nil means a DefaultSettle
	// sleep; tests inject a no-op.
	Settle func()
	// IdleLine, when non-nil, is re-asserted after each cycle so transports
	// that share the strobe pins see a defined state between cycles. Nil
	// leaves the last scanned line asserted.
	IdleLine *uint8
}

// Scanner walks the whole matrix once per Cycle call, visiting every key
// position exactly once in fixed bank-major order.
type Scanner struct {
	geo      matrix.Geometry
	hw       Matrix
	settle   func()
	idleLine *uint8
	raw      [matrix.MaxKeys]bool
}

// NewScanner returns a Scanner over the given hardware.
func NewScanner(geo matrix.Geometry, hw Matrix, cfg Config) *Scanner {
	settle := cfg.Settle
	if settle == nil {
		settle = func() { time.Sleep(DefaultSettle) }
	}
	return &Scanner{
		geo:      geo,
		hw:       hw,
		settle:   settle,
		idleLine: cfg.IdleLine,
	}
}

// Cycle performs one full scan and returns the raw pressed state indexed by
// scancode. The returned slice is reused across cycles; callers must not
// retain it.
func (s *Scanner) Cycle() []bool {
	for row := uint8(0); row < s.geo.Rows(); row++ {
		s.hw.SetActiveLine(row)
		s.settle()
		for bank := uint8(0); bank < s.geo.Banks(); bank++ {
			in := s.hw.ReadInputBank(bank)
			for col := uint8(0); col < s.geo.Cols(); col++ {
				code := s.geo.Scancode(matrix.Position{Row: row, Bank: bank, Col: col})
				s.raw[code] = in&(1<<col) != 0
			}
		}
	}
	if s.idleLine != nil {
		s.hw.SetActiveLine(*s.idleLine)
	}
	return s.raw[:]
}
