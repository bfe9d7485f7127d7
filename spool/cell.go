// File: spool/cell.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-shot input cell: written at most once from outside the pool, readable
// by any number of jobs thereafter. Two flags separate "a writer committed"
// from "the value is fully stored" so a reader can never observe a partial
// write.

package spool

import (
	"sync/atomic"

	"github.com/momentics/spool/api"
)

// Ensure compile-time interface compliance.
var _ api.Completable = (*InputData[any])(nil)

// InputData holds a value of T delivered by exactly one Submit call.
// It completes (IsDone returns true) once the value is fully stored, which
// makes it usable directly as a job prerequisite.
type InputData[T any] struct {
	data       T
	writeStart atomic.Bool
	writeEnd   atomic.Bool
}

// NewInputData returns an empty cell holding T's zero value.
func NewInputData[T any]() *InputData[T] {
	return &InputData[T]{}
}

// NewInputDataFrom returns a cell pre-constructed with value but not yet
// submitted; the first Submit still decides the observable content.
func NewInputDataFrom[T any](value T) *InputData[T] {
	return &InputData[T]{data: value}
}

// Submit stores value if no submission has won yet. Later submissions are
// silently dropped: the first write wins.
func (c *InputData[T]) Submit(value T) {
	if c.writeStart.CompareAndSwap(false, true) {
		c.data = value
		c.writeEnd.Store(true)
	}
}

// SubmitWith applies mutator to the held value if no submission has won
// yet. Later submissions are silently dropped.
func (c *InputData[T]) SubmitWith(mutator func(*T)) {
	if c.writeStart.CompareAndSwap(false, true) {
		mutator(&c.data)
		c.writeEnd.Store(true)
	}
}

// IsDone reports whether a submitted value is fully stored.
func (c *InputData[T]) IsDone() bool {
	return c.writeEnd.Load()
}

// CreateReadHandle yields a live handle iff the cell is done; otherwise an
// empty handle. The cell is append-only, so no reader accounting is needed
// and Release is a no-op.
func (c *InputData[T]) CreateReadHandle() Handle[T] {
	if !c.writeEnd.Load() {
		return Handle[T]{}
	}
	return Handle[T]{data: &c.data}
}

// CreateReadProvider returns a provider bound to this cell.
func (c *InputData[T]) CreateReadProvider() ReadProvider[T] {
	return ReadProvider[T]{source: c}
}
