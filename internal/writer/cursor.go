package writer

import (
	"sync/atomic"
)

// pack encodes the cursor {activeBufferIndex, filledCount} into one word so
// both halves change in a single CAS.
func pack(index, filled uint32) uint64 {
	return uint64(index)<<32 | uint64(filled)
}

func unpack(v uint64) (index, filled uint32) {
	return uint32(v >> 32), uint32(v)
}

// reservation is the outcome of one successful slot reservation.
type reservation struct {
	buffer  int
	slot    int
	retired int
	// hasRetired is set for exactly one caller per buffer rollover.
	hasRetired bool
	// overrun is set when the rollover wrapped onto a buffer whose
	// previous flush had not completed.
	overrun bool
}

// positionAllocator hands out unique (buffer, slot) pairs with a CAS loop
// over the packed cursor.
type positionAllocator struct {
	_         [64]byte
	cursor    atomic.Uint64
	_         [56]byte
	buffers   uint32
	perBuffer uint32
	// pending counts retirements of a buffer whose flush has not finished.
	pending      []atomic.Int32
	backpressure bool
}

func newPositionAllocator(bufferCount, recordsPerBuffer int, backpressure bool) *positionAllocator {
	return &positionAllocator{
		buffers:      uint32(bufferCount),
		perBuffer:    uint32(recordsPerBuffer),
		pending:      make([]atomic.Int32, bufferCount),
		backpressure: backpressure,
	}
}

// active returns the buffer currently being filled.
func (a *positionAllocator) active() int {
	index, _ := unpack(a.cursor.Load())
	return int(index)
}

// snapshot returns the active buffer and its filled count.
func (a *positionAllocator) snapshot() (int, int) {
	index, filled := unpack(a.cursor.Load())
	return int(index), int(filled)
}

// reserve claims the next slot. It never waits. Under the backpressure
// policy a rollover onto a buffer that is still flushing is refused:
// blocked is true and r.buffer names the buffer to wait for.
func (a *positionAllocator) reserve() (r reservation, blocked bool) {
	var spins uint32
	for {
		cur := a.cursor.Load()
		index, filled := unpack(cur)

		if filled < a.perBuffer {
			if a.cursor.CompareAndSwap(cur, pack(index, filled+1)) {
				return reservation{buffer: int(index), slot: int(filled + 1)}, false
			}
			backoff(&spins)
			continue
		}

		nextIndex := (index + 1) % a.buffers
		busy := a.pending[nextIndex].Load() > 0
		if busy && a.backpressure {
			return reservation{buffer: int(nextIndex)}, true
		}

		// The retired buffer is marked busy before the rollover is
		// published, so a producer that wraps onto it straight after the
		// CAS already sees it flushing.
		a.pending[index].Add(1)
		if a.cursor.CompareAndSwap(cur, pack(nextIndex, 1)) {
			return reservation{
				buffer:     int(nextIndex),
				slot:       1,
				retired:    int(index),
				hasRetired: true,
				overrun:    busy,
			}, false
		}
		a.pending[index].Add(-1)
		backoff(&spins)
	}
}

// flushing reports whether a retired buffer still awaits its flush.
func (a *positionAllocator) flushing(buffer int) bool {
	return a.pending[buffer].Load() > 0
}

// markFlushed records the completion of one flush of buffer.
func (a *positionAllocator) markFlushed(buffer int) {
	a.pending[buffer].Add(-1)
}
