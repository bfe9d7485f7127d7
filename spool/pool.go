// File: spool/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool lifecycle and the worker main loop: claim a job from the own deque,
// the global unassigned queue, or another worker's deque; try to run it;
// hold it off-queue if it refuses. The held list is flushed back onto the
// deque after every completed job and whenever a full scan finds nothing,
// so held work is always published before a worker idles.

package spool

import (
	"runtime"
	"time"

	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"

	"github.com/momentics/spool/affinity"
	"github.com/momentics/spool/api"
	"github.com/momentics/spool/internal/concurrency"
)

// Ensure compile-time interface compliance.
var _ api.Executor = (*Pool)(nil)

// Tunable defaults.
const (
	// DefaultPrerequisiteBudget bounds the pending prerequisites per job.
	DefaultPrerequisiteBudget = 1024
	// DefaultQueueCapacity bounds the global unassigned queue.
	DefaultQueueCapacity = 2056
	// DefaultDequeCapacity bounds each worker's deque.
	DefaultDequeCapacity = 1024

	// idleSpinLimit is how many empty scans a worker tolerates before it
	// stops yielding and starts sleeping.
	idleSpinLimit = 64
)

type config struct {
	workers      int
	attachable   int
	queueCap     int
	dequeCap     int
	prereqBudget int
	pinWorkers   bool
	log          logr.Logger
}

// Option customizes pool construction.
type Option func(*config)

// WithWorkers sets the number of spawned worker goroutines.
// Defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithAttachableWorkers reserves n worker slots for external goroutines
// joining via AttachAsWorker. Defaults to 0.
func WithAttachableWorkers(n int) Option {
	return func(c *config) { c.attachable = n }
}

// WithQueueCapacity sets the global unassigned queue capacity.
func WithQueueCapacity(n int) Option {
	return func(c *config) { c.queueCap = n }
}

// WithDequeCapacity sets each worker's deque capacity.
func WithDequeCapacity(n int) Option {
	return func(c *config) { c.dequeCap = n }
}

// WithPrerequisiteBudget sets the pending-prerequisite bound per job.
func WithPrerequisiteBudget(n int) Option {
	return func(c *config) { c.prereqBudget = n }
}

// WithAffinity pins each spawned worker's OS thread to a CPU on supported
// platforms. Attached workers are never pinned.
func WithAffinity(pin bool) Option {
	return func(c *config) { c.pinWorkers = pin }
}

// WithLogger installs a logger for pool lifecycle events.
// Defaults to logr.Discard().
func WithLogger(log logr.Logger) Option {
	return func(c *config) { c.log = log }
}

// Pool executes jobs across a fixed set of workers while respecting
// dynamically declared prerequisites. See the package documentation for the
// scheduling model.
type Pool struct {
	cfg        config
	workers    []*worker
	unassigned *concurrency.MPMC[*Job]
	exiting    atomic.Bool
	attached   atomic.Int32
	metrics    poolMetrics
	log        logr.Logger
}

// New constructs a pool and spawns its workers. The pool must be shut down
// with Exit or WaitExit; idle workers consume CPU while polling for work.
func New(opts ...Option) *Pool {
	cfg := config{
		workers:      runtime.NumCPU(),
		queueCap:     DefaultQueueCapacity,
		dequeCap:     DefaultDequeCapacity,
		prereqBudget: DefaultPrerequisiteBudget,
		log:          logr.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.NumCPU()
	}
	if cfg.attachable < 0 {
		cfg.attachable = 0
	}

	p := &Pool{
		cfg:        cfg,
		unassigned: concurrency.NewMPMC[*Job](cfg.queueCap),
		log:        cfg.log,
	}
	total := cfg.workers + cfg.attachable
	p.workers = make([]*worker, total)
	for i := 0; i < total; i++ {
		p.workers[i] = &worker{
			index:    i,
			pool:     p,
			deque:    concurrency.NewDeque[*Job](cfg.dequeCap),
			overflow: queue.New(),
			done:     make(chan struct{}),
		}
	}
	for i := 0; i < cfg.workers; i++ {
		w := p.workers[i]
		w.started.Store(true)
		go w.run(cfg.pinWorkers)
	}
	p.log.V(1).Info("pool started", "workers", cfg.workers, "attachable", cfg.attachable)
	return p
}

// NumWorkers returns the number of worker slots, spawned and attachable.
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// Exit signals all workers to stop after their current iteration. Jobs
// still queued will not start; references held by callers stay valid.
func (p *Pool) Exit() {
	if p.exiting.CompareAndSwap(false, true) {
		p.log.V(1).Info("pool exit requested")
	}
}

// WaitExit signals shutdown and waits for the pool's workers to stop. When
// called from a worker of this pool it skips the calling worker and returns
// false; every other case returns true with the pool fully quiescent.
func (p *Pool) WaitExit() bool {
	p.Exit()
	var self *worker
	if ec := GetExecutionContext(); ec.Pool == p {
		self = ec.worker
	}
	for _, w := range p.workers {
		if w == self {
			continue
		}
		if w.started.Load() {
			<-w.done
		}
	}
	return self == nil
}

// AttachResult reports the outcome of AttachAsWorker.
type AttachResult int

const (
	// AttachedAndRan: the calling goroutine served as a worker until the
	// pool exited.
	AttachedAndRan AttachResult = iota
	// AlreadyWorker: the caller is already inside an execution context.
	AlreadyWorker
	// MaxAlreadyAttached: no reserved worker slot remained.
	MaxAlreadyAttached
)

func (r AttachResult) String() string {
	switch r {
	case AttachedAndRan:
		return "attached and ran"
	case AlreadyWorker:
		return "already a worker"
	case MaxAlreadyAttached:
		return "max workers already attached"
	}
	return "unknown"
}

// AttachAsWorker turns the calling goroutine into a worker of this pool,
// claiming one of the slots reserved at construction. It blocks until the
// pool exits.
func (p *Pool) AttachAsWorker() AttachResult {
	if GetExecutionContext().Pool != nil {
		return AlreadyWorker
	}
	for {
		cur := p.attached.Load()
		if int(cur) >= p.cfg.attachable {
			return MaxAlreadyAttached
		}
		if p.attached.CompareAndSwap(cur, cur+1) {
			w := p.workers[p.cfg.workers+int(cur)]
			p.metrics.attaches.Add(1)
			p.log.V(1).Info("worker attached", "worker", w.index)
			w.started.Store(true)
			w.run(false)
			return AttachedAndRan
		}
	}
}

// Submit implements api.Executor over the plain-job enqueue surface.
func (p *Pool) Submit(task func()) error {
	_, err := p.EnqueueJob(task)
	return err
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() map[string]int64 {
	return map[string]int64{
		"enqueued": p.metrics.enqueued.Load(),
		"executed": p.metrics.executed.Load(),
		"held":     p.metrics.held.Load(),
		"steals":   p.metrics.steals.Load(),
		"flushes":  p.metrics.flushes.Load(),
		"attaches": p.metrics.attaches.Load(),
		"workers":  int64(len(p.workers)),
	}
}

// worker is the fixed association between an index, a deque and a
// goroutine, spawned or attached.
type worker struct {
	index int
	pool  *Pool
	deque *concurrency.Deque[*Job]
	// overflow absorbs deque refusals. Owner-only, unbounded.
	overflow *queue.Queue
	// held stashes jobs that refused to run this turn. Owner-only, LIFO.
	held    []*Job
	active  atomic.Pointer[Job]
	started atomic.Bool
	done    chan struct{}
}

func (w *worker) run(pin bool) {
	p := w.pool
	registerWorker(w)
	defer func() {
		unregisterWorker()
		close(w.done)
	}()
	if pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := affinity.SetAffinity(w.index % runtime.NumCPU()); err != nil {
			p.log.V(1).Info("affinity pin unavailable", "worker", w.index, "reason", err.Error())
		}
	}
	p.log.V(2).Info("worker running", "worker", w.index)

	idle := 0
	for !p.exiting.Load() {
		next := w.acquireNextJob()
		if next == nil {
			// Publish held work so other workers can steal it, then
			// back off.
			w.flushHeld()
			idle++
			if idle < idleSpinLimit {
				runtime.Gosched()
			} else {
				time.Sleep(time.Millisecond)
			}
			continue
		}
		idle = 0
		w.active.Store(next)
		terminal := next.tryRun()
		w.active.Store(nil)
		if terminal {
			p.metrics.executed.Add(1)
			w.flushHeld()
		} else {
			p.metrics.held.Add(1)
			w.held = append(w.held, next)
		}
	}
	p.log.V(2).Info("worker stopped", "worker", w.index)
}

// acquireNextJob scans, in order: the own deque, the own overflow spill,
// the global unassigned queue, then every other worker's deque in cyclic
// order starting one past this worker.
func (w *worker) acquireNextJob() *Job {
	if j, ok := w.deque.Pop(); ok {
		return j
	}
	if w.overflow.Length() > 0 {
		return w.overflow.Remove().(*Job)
	}
	if j, ok := w.pool.unassigned.Dequeue(); ok {
		return j
	}
	n := len(w.pool.workers)
	for i := 1; i < n; i++ {
		victim := w.pool.workers[(w.index+i)%n]
		if j, ok := victim.deque.Steal(); ok {
			w.pool.metrics.steals.Add(1)
			return j
		}
	}
	return nil
}

// flushHeld re-exposes held jobs on the deque where both this worker and
// stealers can see them.
func (w *worker) flushHeld() {
	if len(w.held) == 0 {
		return
	}
	for i := len(w.held) - 1; i >= 0; i-- {
		w.pushLocal(w.held[i])
	}
	w.held = w.held[:0]
	w.pool.metrics.flushes.Add(1)
}

// pushLocal places a job on this worker's deque, spilling to the overflow
// queue when the deque is full. Spilled jobs drain back first so steal
// order stays oldest-first. Owner-only.
func (w *worker) pushLocal(j *Job) {
	for w.overflow.Length() > 0 {
		if !w.deque.Push(w.overflow.Peek().(*Job)) {
			break
		}
		w.overflow.Remove()
	}
	if w.overflow.Length() > 0 || !w.deque.Push(j) {
		w.overflow.Add(j)
	}
}
