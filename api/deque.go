// File: api/deque.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Work-stealing deque contract. One deque per worker; the owner works the
// bottom end, every other worker steals from the top.

package api

// Deque is a bounded work-stealing deque. Push and Pop may only be called
// by the owning worker; Steal is safe from any goroutine.
type Deque[T any] interface {
	// Push adds an item at the bottom, returns false if full.
	Push(item T) bool
	// Pop removes the newest item from the bottom, returns false if empty.
	Pop() (T, bool)
	// Steal removes the oldest item from the top, returns false if empty
	// or if the race for the last item was lost.
	Steal() (T, bool)
	// Len returns an estimate of the current number of items.
	Len() int
	// Cap returns the fixed capacity.
	Cap() int
}
