// File: api/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor contract for parallel task dispatch. The pool satisfies it so
// callers written against a plain submit surface need no knowledge of jobs,
// prerequisites or stealing.

package api

// Executor abstracts parallel task execution.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task func()) error

	// NumWorkers returns the number of worker slots, spawned and attachable.
	NumWorkers() int
}
