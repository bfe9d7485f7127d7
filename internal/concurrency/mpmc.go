// File: internal/concurrency/mpmc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded multi-producer/multi-consumer ring with per-slot sequence numbers.
// Non-blocking on both ends: a full ring refuses the insert, an empty ring
// refuses the remove. The head and tail indices are padded to keep producers
// and consumers off each other's cache lines; the slots themselves are not.

package concurrency

import (
	"sync/atomic"

	"github.com/momentics/spool/api"
)

// Ensure compile-time interface compliance.
var _ api.Ring[any] = (*MPMC[any])(nil)

const cacheLine = 64

type slot[T any] struct {
	sequence atomic.Uint64
	value    T
}

// MPMC is a bounded lock-free FIFO safe for any number of producers and
// consumers. Capacity is rounded up to a power of two.
type MPMC[T any] struct {
	ring []slot[T]
	mask uint64
	_    [cacheLine]byte
	head atomic.Uint64
	_    [cacheLine - 8]byte
	tail atomic.Uint64
	_    [cacheLine - 8]byte
}

// NewMPMC allocates a ring of at least the given capacity.
func NewMPMC[T any](capacity int) *MPMC[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &MPMC[T]{
		ring: make([]slot[T], size),
		mask: uint64(size - 1),
	}
	for i := range q.ring {
		q.ring[i].sequence.Store(uint64(i))
	}
	return q
}

// Enqueue adds an item, returns false if full.
func (q *MPMC[T]) Enqueue(item T) bool {
	for {
		tail := q.tail.Load()
		s := &q.ring[tail&q.mask]
		seq := s.sequence.Load()
		diff := int64(seq) - int64(tail)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(tail, tail+1) {
				s.value = item
				s.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			// Slot still owned by a consumer one lap behind: full.
			return false
		}
		// diff > 0: another producer advanced tail first, retry.
	}
}

// Dequeue removes the oldest item, returns false if empty.
func (q *MPMC[T]) Dequeue() (T, bool) {
	var zero T
	for {
		head := q.head.Load()
		s := &q.ring[head&q.mask]
		seq := s.sequence.Load()
		diff := int64(seq) - int64(head+1)
		switch {
		case diff == 0:
			if q.head.CompareAndSwap(head, head+1) {
				item := s.value
				s.value = zero
				s.sequence.Store(head + q.mask + 1)
				return item, true
			}
		case diff < 0:
			return zero, false
		}
	}
}

// Len returns the approximate number of items in the ring.
func (q *MPMC[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail > head {
		return int(tail - head)
	}
	return 0
}

// Cap returns the fixed ring capacity.
func (q *MPMC[T]) Cap() int {
	return len(q.ring)
}
