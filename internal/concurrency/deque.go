// File: internal/concurrency/deque.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Chase-Lev work-stealing deque over a fixed circular buffer. The owning
// worker pushes and pops at the bottom; thieves CAS the top. The only
// contended case is the last element, resolved by a CAS on top from both
// sides.

package concurrency

import (
	"sync/atomic"

	"github.com/momentics/spool/api"
)

// Ensure compile-time interface compliance.
var _ api.Deque[any] = (*Deque[any])(nil)

// Deque is a bounded work-stealing deque. Push/Pop are owner-only;
// Steal is safe from any goroutine.
type Deque[T any] struct {
	_      [cacheLine]byte
	top    atomic.Int64
	_      [cacheLine - 8]byte
	bottom atomic.Int64
	_      [cacheLine - 8]byte
	buffer []T
	mask   int64
}

// NewDeque allocates a deque of at least the given capacity.
func NewDeque[T any](capacity int) *Deque[T] {
	size := int64(1)
	for size < int64(capacity) {
		size <<= 1
	}
	return &Deque[T]{
		buffer: make([]T, size),
		mask:   size - 1,
	}
}

// Push adds an item at the bottom, returns false if full.
// Owner-only.
func (d *Deque[T]) Push(item T) bool {
	bottom := d.bottom.Load()
	top := d.top.Load()
	if bottom-top >= int64(len(d.buffer)) {
		return false
	}
	d.buffer[bottom&d.mask] = item
	// The store above must be visible before bottom advances.
	d.bottom.Store(bottom + 1)
	return true
}

// Pop removes the newest item from the bottom, returns false if empty.
// Owner-only.
func (d *Deque[T]) Pop() (T, bool) {
	var zero T
	bottom := d.bottom.Load() - 1
	d.bottom.Store(bottom)
	top := d.top.Load()
	if top > bottom {
		// Empty, restore.
		d.bottom.Store(bottom + 1)
		return zero, false
	}
	item := d.buffer[bottom&d.mask]
	if top == bottom {
		// Last element: race a thief for it.
		if !d.top.CompareAndSwap(top, top+1) {
			item = zero
			d.bottom.Store(bottom + 1)
			return item, false
		}
		d.bottom.Store(bottom + 1)
		return item, true
	}
	return item, true
}

// Steal removes the oldest item from the top, returns false if empty or
// if the race for the item was lost.
func (d *Deque[T]) Steal() (T, bool) {
	var zero T
	top := d.top.Load()
	bottom := d.bottom.Load()
	if top >= bottom {
		return zero, false
	}
	item := d.buffer[top&d.mask]
	if !d.top.CompareAndSwap(top, top+1) {
		return zero, false
	}
	return item, true
}

// Len returns an estimate of the current number of items.
func (d *Deque[T]) Len() int {
	size := d.bottom.Load() - d.top.Load()
	if size < 0 {
		return 0
	}
	return int(size)
}

// Cap returns the fixed capacity.
func (d *Deque[T]) Cap() int {
	return len(d.buffer)
}
