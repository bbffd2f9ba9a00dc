package scan

import (
	"github.com/Alia5/STROBE/matrix"
	"github.com/Alia5/STROBE/wire"
)

// Debouncer filters raw matrix samples into confirmed key transitions.
//
// With Threshold == 0 every first mismatch between the raw sample and the
// confirmed state commits immediately, as the earliest hardware revision
// did. With Threshold == T > 0 a mismatch starts a per-key counter that
// runs for T further cycles regardless of what the raw level does in
// between; at the end of the window the confirmed state is committed to
// the then-current raw level. A commit emits exactly one event if and only
// if the confirmed state actually flips, so a glitch shorter than the
// window produces no event at all.
type Debouncer struct {
	geo       matrix.Geometry
	threshold uint8
	emit      func(wire.Event)
	state     [matrix.MaxKeys / 8]uint8
	count     [matrix.MaxKeys]uint8
}

// NewDebouncer returns a Debouncer that reports confirmed transitions to
// emit, in scancode order within one cycle.
func NewDebouncer(geo matrix.Geometry, threshold uint8, emit func(wire.Event)) *Debouncer {
	return &Debouncer{
		geo:       geo,
		threshold: threshold,
		emit:      emit,
	}
}

// Down reports the last confirmed state of a key.
func (d *Debouncer) Down(code uint8) bool {
	return d.state[code/8]&(1<<(code%8)) != 0
}

// Update consumes one scan cycle's raw samples (indexed by scancode, as
// produced by Scanner.Cycle) and emits any transitions that commit this
// cycle. It runs on the scan path and must not be called concurrently with
// itself or Reset.
func (d *Debouncer) Update(raw []bool) {
	for row := uint8(0); row < d.geo.Rows(); row++ {
		for bank := uint8(0); bank < d.geo.Banks(); bank++ {
			for col := uint8(0); col < d.geo.Cols(); col++ {
				code := d.geo.Scancode(matrix.Position{Row: row, Bank: bank, Col: col})
				d.step(code, raw[code])
			}
		}
	}
}

func (d *Debouncer) step(code uint8, pressed bool) {
	if d.threshold == 0 {
		if pressed != d.Down(code) {
			d.commit(code, pressed)
		}
		return
	}
	if d.count[code] == 0 {
		if pressed != d.Down(code) {
			d.count[code] = 1
		}
		return
	}
	d.count[code]++
	if d.count[code] > d.threshold {
		d.count[code] = 0
		if pressed != d.Down(code) {
			d.commit(code, pressed)
		}
	}
}

// commit flips the confirmed state and emits the matching event. The flip
// and the emission are a single step on the scan path; nothing can observe
// one without the other.
func (d *Debouncer) commit(code uint8, pressed bool) {
	d.state[code/8] ^= 1 << (code % 8)
	if pressed {
		d.emit(wire.KeyDown(code))
	} else {
		d.emit(wire.KeyUp(code))
	}
}

// Reset clears all confirmed state and running counters, so every key reads
// as up until the matrix proves otherwise. Call only while the scan path is
// held off.
func (d *Debouncer) Reset() {
	d.state = [matrix.MaxKeys / 8]uint8{}
	d.count = [matrix.MaxKeys]uint8{}
}
