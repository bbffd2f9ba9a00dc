// Package matrix describes the physical key matrix: its fixed geometry and
// the bijective mapping between (row, bank, column) addresses and scancodes.
package matrix

import "fmt"

// MaxKeys bounds the scancode space. Bit 7 of the event byte carries the
// key-up flag, so scancodes must fit in 7 bits.
const MaxKeys = 128

// Position addresses one physical key: the strobed output line (row), the
// input bank it is sampled from, and the column bit within that bank.
type Position struct {
	Row  uint8
	Bank uint8
	Col  uint8
}

// Geometry is the shape of the key matrix, fixed for the lifetime of the
// program. Supported layouts are single-bank (scancode = row<<3 | col) and
// dual-bank (scancode = row<<4 | bank<<3 | col), both with up to 8 columns
// per bank.
type Geometry struct {
	rows  uint8
	banks uint8
	cols  uint8
}

// New validates and returns a Geometry. Banks must be 1 or 2, columns at
// most 8, and the total key count may not exceed MaxKeys.
func New(rows, banks, cols uint8) (Geometry, error) {
	if rows == 0 || banks == 0 || cols == 0 {
		return Geometry{}, fmt.Errorf("matrix dimensions must be non-zero, got %dx%dx%d", rows, banks, cols)
	}
	if banks > 2 {
		return Geometry{}, fmt.Errorf("at most 2 input banks are supported, got %d", banks)
	}
	if cols > 8 {
		return Geometry{}, fmt.Errorf("at most 8 columns per bank are supported, got %d", cols)
	}
	maxRows := uint8(16)
	if banks == 2 {
		maxRows = 8
	}
	if rows > maxRows {
		return Geometry{}, fmt.Errorf("at most %d rows are supported with %d bank(s), got %d", maxRows, banks, rows)
	}
	if int(rows)*int(banks)*int(cols) > MaxKeys {
		return Geometry{}, fmt.Errorf("matrix has %d keys, scancode space holds %d", int(rows)*int(banks)*int(cols), MaxKeys)
	}
	return Geometry{rows: rows, banks: banks, cols: cols}, nil
}

// MustNew is New for build-time-constant geometries.
func MustNew(rows, banks, cols uint8) Geometry {
	g, err := New(rows, banks, cols)
	if err != nil {
		panic(err)
	}
	return g
}

// Square8x8 returns the classic 64-key single-bank layout.
func Square8x8() Geometry {
	return Geometry{rows: 8, banks: 1, cols: 8}
}

func (g Geometry) Rows() uint8  { return g.rows }
func (g Geometry) Banks() uint8 { return g.banks }
func (g Geometry) Cols() uint8  { return g.cols }

// Keys returns the number of physical key positions.
func (g Geometry) Keys() int {
	return int(g.rows) * int(g.banks) * int(g.cols)
}

// Scancode maps a position to its scancode. The mapping is bijective over
// the geometry's positions; out-of-range positions are the caller's bug.
func (g Geometry) Scancode(p Position) uint8 {
	if g.banks == 2 {
		return p.Row<<4 | p.Bank<<3 | p.Col
	}
	return p.Row<<3 | p.Col
}

// Position inverts Scancode.
func (g Geometry) Position(code uint8) Position {
	if g.banks == 2 {
		return Position{Row: code >> 4, Bank: code >> 3 & 1, Col: code & 7}
	}
	return Position{Row: code >> 3, Col: code & 7}
}

// Contains reports whether code addresses a key within this geometry.
func (g Geometry) Contains(code uint8) bool {
	p := g.Position(code)
	return p.Row < g.rows && p.Bank < g.banks && p.Col < g.cols
}
