// File: spool/job.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Job is the unit of scheduling: a work function, a bounded MPMC set of
// prerequisites, and a monotonic done flag. Plain bodies are wrapped into
// the polled form at construction so the scheduler deals with one shape.

package spool

import (
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/momentics/spool/api"
	"github.com/momentics/spool/internal/concurrency"
)

// Ensure compile-time interface compliance.
var _ api.Completable = (*Job)(nil)

// Job is created by a pool's enqueue surface and shared by reference between
// the caller, the scheduler and any dependents naming it as a prerequisite.
// It is never copied after construction.
type Job struct {
	// work returns true when the job is finished. Plain bodies always
	// return true; polled bodies return false to be held and retried.
	work          func() bool
	done          atomic.Bool
	prerequisites *concurrency.MPMC[api.Completable]
}

func newJob(work func() bool, prerequisiteBudget int) *Job {
	return &Job{
		work:          work,
		prerequisites: concurrency.NewMPMC[api.Completable](prerequisiteBudget),
	}
}

// Cancel prevents execution from starting if it has not already. It does not
// cancel or unblock-check dependents: they observe this job as done and
// become eligible to run. Idempotent.
func (j *Job) Cancel() {
	j.done.Store(true)
}

// IsDone reports whether the job ran to completion or was cancelled.
func (j *Job) IsDone() bool {
	return j.done.Load()
}

// AddPrerequisite gates this job on p. Nil and already-done prerequisites
// are dropped. Safe from any goroutine, including from inside other running
// jobs, up until the job completes. Cycles among jobs are not detected and
// leave every member perpetually held; prerequisite graphs must be acyclic.
func (j *Job) AddPrerequisite(p api.Completable) error {
	if p == nil || p.IsDone() {
		return nil
	}
	if !j.prerequisites.Enqueue(p) {
		return errors.Wrapf(api.ErrPrerequisiteOverflow, "budget %d", j.prerequisites.Cap())
	}
	return nil
}

// tryRun is the scheduler's execution step. The returned flag means
// "terminal: remove me from scheduling". A false return holds the job for
// retry; the done flag is untouched so the at-most-once guarantee survives.
func (j *Job) tryRun() (terminal bool) {
	if j.done.Load() {
		// Cancelled or already ran.
		return true
	}
	for {
		p, ok := j.prerequisites.Dequeue()
		if !ok {
			break
		}
		if !p.IsDone() {
			// Unsatisfied: put it back and refuse to run. A slot was
			// just freed, so only a concurrent burst of additions can
			// make this spin.
			for !j.prerequisites.Enqueue(p) {
				runtime.Gosched()
			}
			return false
		}
	}
	defer func() {
		if r := recover(); r != nil {
			// An escaping body must not take the worker down; the job
			// is marked done and never retried.
			j.done.Store(true)
			terminal = true
		}
	}()
	if j.work() {
		j.done.Store(true)
		return true
	}
	return false
}
