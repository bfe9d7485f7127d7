// File: spool/job_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package spool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/spool/api"
)

func TestJob_CancelPreventsExecution(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	g := &gate{}
	var ran atomic.Bool
	j, err := p.EnqueueJob(func() { ran.Store(true) }, g)
	require.NoError(t, err)

	j.Cancel()
	assert.True(t, j.IsDone())
	j.Cancel() // idempotent
	assert.True(t, j.IsDone())

	g.Release()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load(), "cancelled job body must never run")
}

func TestJob_CancelledPrerequisiteUnblocksDependent(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	g := &gate{}
	blocked, err := p.EnqueueJob(func() {}, g)
	require.NoError(t, err)
	var ran atomic.Bool
	dependent, err := p.EnqueueJob(func() { ran.Store(true) }, blocked)
	require.NoError(t, err)

	// The dependent sees a cancelled prerequisite as done.
	blocked.Cancel()
	waitDone(t, dependent)
	assert.True(t, ran.Load())
}

func TestJob_AddPrerequisiteDropsDoneAndNil(t *testing.T) {
	j := newJob(func() bool { return true }, 8)

	require.NoError(t, j.AddPrerequisite(nil))
	finished := newJob(func() bool { return true }, 8)
	finished.Cancel()
	require.NoError(t, j.AddPrerequisite(finished))
	assert.Equal(t, 0, j.prerequisites.Len(), "done and nil prerequisites must be dropped")

	g := &gate{}
	require.NoError(t, j.AddPrerequisite(g))
	assert.Equal(t, 1, j.prerequisites.Len())
}

func TestJob_PrerequisiteBudget(t *testing.T) {
	j := newJob(func() bool { return true }, 2)
	require.NoError(t, j.AddPrerequisite(&gate{}))
	require.NoError(t, j.AddPrerequisite(&gate{}))
	err := j.AddPrerequisite(&gate{})
	assert.ErrorIs(t, err, api.ErrPrerequisiteOverflow)
}

func TestJob_TryRunHoldsUntilPrerequisitesDone(t *testing.T) {
	var runs atomic.Int32
	j := newJob(func() bool { runs.Add(1); return true }, 8)
	g1 := &gate{}
	g2 := &gate{}
	require.NoError(t, j.AddPrerequisite(g1))
	require.NoError(t, j.AddPrerequisite(g2))

	assert.False(t, j.tryRun())
	assert.False(t, j.IsDone())
	g1.Release()
	assert.False(t, j.tryRun())
	g2.Release()
	assert.True(t, j.tryRun())
	assert.True(t, j.IsDone())
	assert.Equal(t, int32(1), runs.Load())

	// Terminal jobs never run again.
	assert.True(t, j.tryRun())
	assert.Equal(t, int32(1), runs.Load())
}

func TestJob_PolledBodyRetries(t *testing.T) {
	var polls atomic.Int32
	j := newJob(func() bool {
		return polls.Add(1) >= 3
	}, 8)

	assert.False(t, j.tryRun())
	assert.False(t, j.IsDone(), "a false poll must not set the done flag")
	assert.False(t, j.tryRun())
	assert.True(t, j.tryRun())
	assert.True(t, j.IsDone())
}

func TestJob_DynamicPrerequisiteFromRunningJob(t *testing.T) {
	p := New(WithWorkers(2))
	defer p.WaitExit()

	lateGate := &gate{}
	depGate := &gate{}
	var lateRan atomic.Bool
	late, err := p.EnqueueJob(func() { lateRan.Store(true) }, lateGate)
	require.NoError(t, err)

	var violated atomic.Bool
	dependent, err := p.EnqueueJob(func() {
		if !lateRan.Load() {
			violated.Store(true)
		}
	}, depGate)
	require.NoError(t, err)

	var wired atomic.Bool
	_, err = p.EnqueueJob(func() {
		// Wire the dependency from inside another running job.
		if dependent.AddPrerequisite(late) == nil {
			wired.Store(true)
		}
	})
	require.NoError(t, err)
	waitFor(t, 2*time.Second, wired.Load)

	// Both gates open, but the dependent must still wait for late.
	depGate.Release()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, dependent.IsDone())
	lateGate.Release()
	waitDone(t, dependent)
	assert.False(t, violated.Load(), "dependent ran before its late-wired prerequisite")
}
