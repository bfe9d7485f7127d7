// File: spool/resource.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared resource with optimistic multi-reader/single-writer arbitration.
// Handle issuance never blocks: a refused request returns an empty handle
// and the caller (in practice a shared-resource job) retries later. Both
// acquisition paths publish their claim first and roll it back on conflict,
// so the counters always converge to a consistent state.

package spool

import "sync/atomic"

// Handle grants access to a value of T until released. An empty handle
// (Has reports false) carries no claim and its Release is a no-op.
// Release is idempotent; each live handle relinquishes exactly one reader
// increment or one writer assertion.
type Handle[T any] struct {
	data    *T
	release func()
}

// Has reports whether the handle grants access.
func (h *Handle[T]) Has() bool {
	return h.data != nil
}

// Get returns the guarded value. Only valid while Has reports true.
func (h *Handle[T]) Get() *T {
	return h.data
}

// Release returns the handle's claim to the resource.
func (h *Handle[T]) Release() {
	if h.release != nil {
		h.release()
		h.release = nil
	}
	h.data = nil
}

// Resource wraps a value of T behind reader/writer arbitration. Any number
// of concurrent readers may hold it, or one writer, never both.
type Resource[T any] struct {
	data    T
	readers atomic.Int64
	writer  atomic.Bool
}

// NewResource returns a resource initialized with value.
func NewResource[T any](value T) *Resource[T] {
	return &Resource[T]{data: value}
}

// Get returns the underlying value without any arbitration. The caller is
// responsible for synchronization.
func (r *Resource[T]) Get() *T {
	return &r.data
}

// CreateReadHandle attempts shared access. The reader count is raised
// before the writer flag is checked; on conflict the count is rolled back
// and an empty handle returned.
func (r *Resource[T]) CreateReadHandle() Handle[T] {
	r.readers.Add(1)
	if r.writer.Load() {
		r.readers.Add(-1)
		return Handle[T]{}
	}
	return Handle[T]{data: &r.data, release: func() { r.readers.Add(-1) }}
}

// CreateWriteHandle attempts exclusive access. The writer flag is asserted
// first; if any reader is live the flag is rolled back and an empty handle
// returned.
func (r *Resource[T]) CreateWriteHandle() Handle[T] {
	if !r.writer.CompareAndSwap(false, true) {
		return Handle[T]{}
	}
	if r.readers.Load() > 0 {
		r.writer.Store(false)
		return Handle[T]{}
	}
	return Handle[T]{data: &r.data, release: func() { r.writer.Store(false) }}
}

// CreateReadProvider returns a cloneable read-handle factory bound to this
// resource.
func (r *Resource[T]) CreateReadProvider() ReadProvider[T] {
	return ReadProvider[T]{source: r}
}

// CreateWriteProvider returns a cloneable write-handle factory bound to
// this resource.
func (r *Resource[T]) CreateWriteProvider() WriteProvider[T] {
	return WriteProvider[T]{resource: r}
}
