package queue_test

import (
	"testing"

	"github.com/Alia5/STROBE/queue"
	"github.com/Alia5/STROBE/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	for _, c := range []int{0, -1, 3, 100, 255} {
		_, err := queue.New(c)
		assert.Error(t, err, "capacity %d", c)
	}
	r, err := queue.New(256)
	require.NoError(t, err)
	assert.Equal(t, 256, r.Cap())
}

func TestFIFOOrder(t *testing.T) {
	r, err := queue.New(16)
	require.NoError(t, err)

	_, ok := r.Pop()
	assert.False(t, ok)

	for i := uint8(0); i < 10; i++ {
		r.Push(wire.KeyDown(i))
	}
	assert.Equal(t, 10, r.Len())

	for i := uint8(0); i < 10; i++ {
		e, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, wire.KeyDown(i), e)
	}
	_, ok = r.Pop()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), r.Dropped())
}

func TestOverflowDropsOldest(t *testing.T) {
	r, err := queue.New(8)
	require.NoError(t, err)

	for i := uint8(0); i < 12; i++ {
		r.Push(wire.KeyDown(i))
	}
	assert.Equal(t, 8, r.Len())
	assert.Equal(t, uint64(4), r.Dropped())

	// Oldest four are gone; the surviving eight are still in order.
	for i := uint8(4); i < 12; i++ {
		e, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, wire.KeyDown(i), e)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	r, err := queue.New(8)
	require.NoError(t, err)
	r.Push(wire.KeyDown(1))
	r.Push(wire.KeyUp(1))
	r.Reset()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Pop()
	assert.False(t, ok)

	// Still usable after a reset.
	r.Push(wire.KeyDown(2))
	e, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, wire.KeyDown(2), e)
}

func TestConcurrentProducerConsumer(t *testing.T) {
	r, err := queue.New(128)
	require.NoError(t, err)

	const n = 100
	go func() {
		for i := uint8(0); i < n; i++ {
			r.Push(wire.KeyDown(i))
		}
	}()

	got := make([]wire.Event, 0, n)
	for len(got) < n {
		if e, ok := r.Pop(); ok {
			got = append(got, e)
		}
	}
	// Capacity exceeds the burst, so nothing may be dropped and order is
	// exact.
	assert.Equal(t, uint64(0), r.Dropped())
	for i := uint8(0); i < n; i++ {
		assert.Equal(t, wire.KeyDown(i), got[i])
	}
}
