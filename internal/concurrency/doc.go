// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free primitives underpinning the pool: a bounded MPMC ring with
// per-slot sequence numbers (global unassigned queue, per-job prerequisite
// sets) and a Chase-Lev work-stealing deque (per-worker run queues).
// Both are non-blocking on every operation; a full or empty structure
// refuses instead of waiting.
package concurrency
