// Package queue provides the fixed-capacity event ring shared between the
// scan path and the dispatch loop.
package queue

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/Alia5/STROBE/wire"
)

// Ring is a single-producer/single-consumer circular buffer of events.
// Capacity is a power of two so cursor wraparound is a bitmask. Push is
// called only from the scan path and never blocks on the host: when the
// ring is full the oldest unread event is discarded to make room.
//
// The cursors are atomics, so the common push path needs no lock at all.
// The consumer's slot-read-plus-advance and the producer's drop-oldest
// overflow path both touch the same slot and cursor pair, so those spans
// run under a mutex held for a handful of instructions, the equivalent of
// the interrupt-disable window on the original hardware.
type Ring struct {
	buf     []wire.Event
	mask    uint32
	write   atomic.Uint32
	read    atomic.Uint32
	dropped atomic.Uint64

	// mu guards the cursor-pair spans: Pop, and Push's overflow branch.
	mu sync.Mutex
}

// New returns a ring with the given power-of-two capacity.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 || bits.OnesCount(uint(capacity)) != 1 {
		return nil, fmt.Errorf("ring capacity must be a power of two, got %d", capacity)
	}
	return &Ring{
		buf:  make([]wire.Event, capacity),
		mask: uint32(capacity - 1),
	}, nil
}

// Push appends one event, discarding the oldest unread event on overflow.
// Producer side only.
func (r *Ring) Push(e wire.Event) {
	w := r.write.Load()
	if w-r.read.Load() > r.mask {
		r.mu.Lock()
		if w-r.read.Load() > r.mask {
			r.read.Store(r.read.Load() + 1)
			r.dropped.Add(1)
		}
		r.buf[w&r.mask] = e
		r.write.Store(w + 1)
		r.mu.Unlock()
		return
	}
	r.buf[w&r.mask] = e
	r.write.Store(w + 1)
}

// Pop removes and returns the oldest unread event in FIFO order. Consumer
// side only.
func (r *Ring) Pop() (wire.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd := r.read.Load()
	if rd == r.write.Load() {
		return 0, false
	}
	e := r.buf[rd&r.mask]
	r.read.Store(rd + 1)
	return e, true
}

// Len returns the number of unread events.
func (r *Ring) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Dropped returns how many events have been discarded on overflow.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

// Reset discards all unread events.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read.Store(r.write.Load())
}
