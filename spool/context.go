// File: spool/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Execution context: a process-wide mapping from goroutine identity to the
// worker currently hosting it. Running jobs use it to discover their pool
// and enqueue further work without the pool being threaded through
// application code. Go has no thread-local storage, so the mapping is a
// registry keyed by goroutine id, maintained by workers around their run
// loop.

package spool

import (
	"runtime"
	"sync"
)

// ExecutionContext describes the scheduling environment of the calling
// goroutine. Outside any worker both fields are nil.
type ExecutionContext struct {
	// Pool is the pool whose worker hosts the calling goroutine, or nil.
	Pool *Pool
	// ActiveJob is the job being executed by that worker, or nil.
	ActiveJob *Job

	worker *worker
}

var executionRegistry = struct {
	sync.RWMutex
	m map[uint64]*worker
}{m: make(map[uint64]*worker)}

// GetExecutionContext returns the pool and active job of the calling
// goroutine, or the zero context when called outside a worker.
func GetExecutionContext() ExecutionContext {
	executionRegistry.RLock()
	w := executionRegistry.m[goroutineID()]
	executionRegistry.RUnlock()
	if w == nil {
		return ExecutionContext{}
	}
	return ExecutionContext{
		Pool:      w.pool,
		ActiveJob: w.active.Load(),
		worker:    w,
	}
}

func registerWorker(w *worker) {
	executionRegistry.Lock()
	executionRegistry.m[goroutineID()] = w
	executionRegistry.Unlock()
}

func unregisterWorker() {
	executionRegistry.Lock()
	delete(executionRegistry.m, goroutineID())
	executionRegistry.Unlock()
}

// goroutineID parses the header of the calling goroutine's stack dump:
// "goroutine 123 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
