// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sentinel errors shared across the library.

package api

import "errors"

var (
	// ErrPoolClosed indicates the pool has been shut down and accepts no work.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrQueueFull indicates a bounded queue refused an insert.
	ErrQueueFull = errors.New("queue is full")

	// ErrPrerequisiteOverflow indicates a job's prerequisite budget is exhausted.
	ErrPrerequisiteOverflow = errors.New("prerequisite budget exhausted")

	// ErrAffinityNotSupported indicates CPU affinity is not supported on this platform.
	ErrAffinityNotSupported = errors.New("CPU affinity not supported")
)
