// File: spool/enqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The enqueue surface. Placement rule: a submission from inside one of this
// pool's workers lands on that worker's own deque, where just-produced work
// is consumed LIFO and cache-warm; any other submission funnels through the
// global unassigned queue where stealing load-balances it.

package spool

import (
	"github.com/pkg/errors"

	"github.com/momentics/spool/api"
)

// EnqueueJob schedules a plain body that runs once after every listed
// prerequisite completes. Prerequisites already done are dropped; more can
// be added later through the returned job.
func (p *Pool) EnqueueJob(body func(), prerequisites ...api.Completable) (*Job, error) {
	return p.enqueue(func() bool {
		body()
		return true
	}, prerequisites)
}

// EnqueuePolledJob schedules a polled body: a false return re-holds the job
// for retry and does not consume its single execution.
func (p *Pool) EnqueuePolledJob(body func() bool, prerequisites ...api.Completable) (*Job, error) {
	return p.enqueue(body, prerequisites)
}

// EnqueueResourceJob schedules a body guarded by the given providers. Each
// attempt acquires handles left to right; on any refusal the handles
// already taken are released and the job is held for retry. The body runs
// with all handles live and may touch the guarded values freely.
func (p *Pool) EnqueueResourceJob(body func(), providers ...AccessProvider) (*Job, error) {
	return p.enqueue(resourceBody(body, providers), nil)
}

// EnqueueResourceJobAfter is EnqueueResourceJob gated on a prerequisite.
func (p *Pool) EnqueueResourceJobAfter(prerequisite api.Completable, body func(), providers ...AccessProvider) (*Job, error) {
	return p.enqueue(resourceBody(body, providers), []api.Completable{prerequisite})
}

// EnqueueDataJob schedules a body fed by a fresh one-shot input cell. The
// job refuses to run until the cell's value is submitted; the body then
// receives the stored value.
func EnqueueDataJob[T any](p *Pool, body func(*T), prerequisites ...api.Completable) (*Job, *InputData[T], error) {
	cell := NewInputData[T]()
	job, err := p.enqueue(func() bool {
		h := cell.CreateReadHandle()
		if !h.Has() {
			return false
		}
		body(h.Get())
		return true
	}, prerequisites)
	if err != nil {
		return nil, nil, err
	}
	return job, cell, nil
}

// EnqueueReadJob schedules a body holding shared access to res for the
// duration of its single run.
func EnqueueReadJob[T any](p *Pool, res *Resource[T], body func(*T), prerequisites ...api.Completable) (*Job, error) {
	return p.enqueue(handleBody(res.CreateReadHandle, body), prerequisites)
}

// EnqueueWriteJob schedules a body holding exclusive access to res for the
// duration of its single run.
func EnqueueWriteJob[T any](p *Pool, res *Resource[T], body func(*T), prerequisites ...api.Completable) (*Job, error) {
	return p.enqueue(handleBody(res.CreateWriteHandle, body), prerequisites)
}

// enqueue wires prerequisites before publication so the job cannot be
// claimed early, then applies the placement rule.
func (p *Pool) enqueue(work func() bool, prerequisites []api.Completable) (*Job, error) {
	if p.exiting.Load() {
		return nil, api.ErrPoolClosed
	}
	j := newJob(work, p.cfg.prereqBudget)
	for _, pre := range prerequisites {
		if err := j.AddPrerequisite(pre); err != nil {
			return nil, err
		}
	}
	p.metrics.enqueued.Add(1)
	if ec := GetExecutionContext(); ec.Pool == p {
		ec.worker.pushLocal(j)
		return j, nil
	}
	if !p.unassigned.Enqueue(j) {
		return nil, errors.Wrapf(api.ErrQueueFull, "unassigned queue at capacity %d", p.unassigned.Cap())
	}
	return j, nil
}

// handleBody builds a polled body that runs the typed user body under a
// single handle, refusing when the handle is refused.
func handleBody[T any](acquire func() Handle[T], body func(*T)) func() bool {
	return func() bool {
		h := acquire()
		if !h.Has() {
			return false
		}
		defer h.Release()
		body(h.Get())
		return true
	}
}

// resourceBody builds a polled body acquiring every provider left to right.
// All-or-nothing: a single refusal releases what was taken and signals
// retry.
func resourceBody(body func(), providers []AccessProvider) func() bool {
	return func() bool {
		acquired := make([]Access, 0, len(providers))
		refused := false
		for _, prov := range providers {
			h := prov.Acquire()
			if !h.Has() {
				refused = true
				break
			}
			acquired = append(acquired, h)
		}
		if refused {
			for i := len(acquired) - 1; i >= 0; i-- {
				acquired[i].Release()
			}
			return false
		}
		defer func() {
			for i := len(acquired) - 1; i >= 0; i-- {
				acquired[i].Release()
			}
		}()
		body()
		return true
	}
}
