// File: spool/pool_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package spool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/spool/api"
)

// gate is a caller-controlled completable used to dam up dependent jobs.
type gate struct {
	open atomic.Bool
}

func (g *gate) IsDone() bool { return g.open.Load() }

func (g *gate) Release() { g.open.Store(true) }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func waitDone(t *testing.T, c api.Completable) {
	t.Helper()
	waitFor(t, 5*time.Second, c.IsDone)
}

func TestPool_Smoke(t *testing.T) {
	p := New(WithWorkers(4))
	defer p.WaitExit()

	var ran atomic.Bool
	j, err := p.EnqueueJob(func() { ran.Store(true) })
	require.NoError(t, err)
	waitDone(t, j)
	assert.True(t, ran.Load(), "work was never performed")
}

func TestPool_RespectsSequencing(t *testing.T) {
	p := New(WithWorkers(4))
	defer p.WaitExit()

	for round := 0; round < 100; round++ {
		var firstDone atomic.Bool
		j1, err := p.EnqueueJob(func() {
			time.Sleep(5 * time.Millisecond)
			firstDone.Store(true)
		})
		require.NoError(t, err)
		var violated atomic.Bool
		j2, err := p.EnqueueJob(func() {
			if !firstDone.Load() {
				violated.Store(true)
			}
		}, j1)
		require.NoError(t, err)
		waitDone(t, j2)
		require.False(t, violated.Load(), "round %d: job ran before prerequisite", round)
	}
}

func TestPool_GatedPrerequisite(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	g := &gate{}
	var ran atomic.Bool
	j, err := p.EnqueueJob(func() { ran.Store(true) }, g)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, j.IsDone(), "job ran with unsatisfied prerequisite")
	assert.False(t, ran.Load())

	g.Release()
	waitDone(t, j)
	assert.True(t, ran.Load())
}

func TestPool_LoadBalances(t *testing.T) {
	if testing.Short() {
		t.Skip("long balance run")
	}
	const jobs = 1000
	p := New(WithWorkers(4))
	defer p.WaitExit()

	g := &gate{}
	var mu sync.Mutex
	perGoroutine := make(map[uint64]int)
	var completed atomic.Int64

	for i := 0; i < jobs; i++ {
		_, err := p.EnqueueJob(func() {
			id := goroutineID()
			mu.Lock()
			perGoroutine[id]++
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			completed.Add(1)
		}, g)
		require.NoError(t, err)
	}

	g.Release()
	waitFor(t, 30*time.Second, func() bool { return completed.Load() == jobs })

	mu.Lock()
	defer mu.Unlock()
	for id, n := range perGoroutine {
		if n >= jobs*8/10 {
			t.Fatalf("goroutine %d executed %d of %d jobs, load is not balanced", id, n, jobs)
		}
		if n >= jobs/2 {
			t.Errorf("goroutine %d executed %d of %d jobs, load may not be balanced", id, n, jobs)
		}
	}
}

func TestPool_ExecutionContext(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	ec := GetExecutionContext()
	assert.Nil(t, ec.Pool, "non-worker goroutine must see the zero context")
	assert.Nil(t, ec.ActiveJob)

	type snapshot struct {
		pool *Pool
		job  *Job
	}
	var got atomic.Pointer[snapshot]
	ready := make(chan struct{})
	j, err := p.EnqueueJob(func() {
		in := GetExecutionContext()
		got.Store(&snapshot{pool: in.Pool, job: in.ActiveJob})
		close(ready)
	})
	require.NoError(t, err)
	<-ready
	waitDone(t, j)

	s := got.Load()
	require.NotNil(t, s)
	assert.Same(t, p, s.pool, "execution context pool mismatch")
	assert.Same(t, j, s.job, "execution context active job mismatch")
}

func TestPool_ChildEnqueue(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	var child atomic.Pointer[Job]
	parent, err := p.EnqueueJob(func() {
		in := GetExecutionContext()
		j, err := in.Pool.EnqueueJob(func() {})
		if err == nil {
			child.Store(j)
		}
	})
	require.NoError(t, err)
	waitDone(t, parent)

	waitFor(t, 2*time.Second, func() bool {
		c := child.Load()
		return c != nil && c.IsDone()
	})
}

func TestPool_AttachAsWorker(t *testing.T) {
	p := New(WithWorkers(1), WithAttachableWorkers(1))

	results := make(chan AttachResult, 1)
	go func() {
		results <- p.AttachAsWorker()
	}()

	// The attached slot is eventually claimed; further attaches are refused.
	waitFor(t, 2*time.Second, func() bool { return p.attached.Load() == 1 })
	assert.Equal(t, MaxAlreadyAttached, p.AttachAsWorker())

	// Attaching from inside a worker of this pool is refused.
	var fromWorker atomic.Int32
	j, err := p.EnqueueJob(func() {
		fromWorker.Store(int32(p.AttachAsWorker()))
	})
	require.NoError(t, err)
	waitDone(t, j)
	assert.Equal(t, AlreadyWorker, AttachResult(fromWorker.Load()))

	require.True(t, p.WaitExit())
	assert.Equal(t, AttachedAndRan, <-results)
}

func TestPool_WaitExitFromWorker(t *testing.T) {
	p := New(WithWorkers(2))

	var clean atomic.Bool
	var returned atomic.Bool
	j, err := p.EnqueueJob(func() {
		clean.Store(GetExecutionContext().Pool.WaitExit())
		returned.Store(true)
	})
	require.NoError(t, err)
	waitDone(t, j)
	waitFor(t, 2*time.Second, returned.Load)
	assert.False(t, clean.Load(), "WaitExit from a worker must report incomplete teardown")

	// The calling worker was skipped; a second WaitExit from outside joins it.
	assert.True(t, p.WaitExit())
}

func TestPool_ExitDropsPendingJobs(t *testing.T) {
	p := New(WithWorkers(1))
	block := make(chan struct{})
	_, err := p.EnqueueJob(func() { <-block })
	require.NoError(t, err)
	// Give the worker time to claim the blocking job.
	time.Sleep(20 * time.Millisecond)
	pending, err := p.EnqueueJob(func() {})
	require.NoError(t, err)

	p.Exit()
	close(block)
	require.True(t, p.WaitExit())

	assert.False(t, pending.IsDone(), "pending job must not start after exit")
	_, err = p.EnqueueJob(func() {})
	assert.ErrorIs(t, err, api.ErrPoolClosed)
}

func TestPool_SubmitExecutor(t *testing.T) {
	var ex api.Executor = New(WithWorkers(2))
	p := ex.(*Pool)
	defer p.WaitExit()

	var ran atomic.Bool
	require.NoError(t, ex.Submit(func() { ran.Store(true) }))
	waitFor(t, 5*time.Second, ran.Load)
	assert.Equal(t, 2, ex.NumWorkers())
}

func TestPool_PanicContainment(t *testing.T) {
	p := New(WithWorkers(1))
	defer p.WaitExit()

	bad, err := p.EnqueueJob(func() { panic("job body escaped") })
	require.NoError(t, err)
	waitDone(t, bad)

	// The single worker survived and keeps executing.
	var ran atomic.Bool
	good, err := p.EnqueueJob(func() { ran.Store(true) })
	require.NoError(t, err)
	waitDone(t, good)
	assert.True(t, ran.Load())
}

func TestPool_Stats(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	j, err := p.EnqueueJob(func() {})
	require.NoError(t, err)
	waitDone(t, j)
	waitFor(t, 2*time.Second, func() bool { return p.Stats()["executed"] >= 1 })

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats["enqueued"], int64(1))
	assert.Equal(t, int64(2), stats["workers"])
}
