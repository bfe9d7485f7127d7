// File: spool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package spool is a task-graph work-stealing thread pool. Jobs carry
// dynamically extensible prerequisite sets; a job whose prerequisites are
// unsatisfied, or whose shared-resource handles are refused, is held by its
// worker and retried after other work makes progress. Nothing inside the
// scheduler blocks: refusal and retry replace waiting everywhere.
//
// Work enters through the enqueue surface: plain jobs, data jobs fed by a
// one-shot input cell, shared-resource jobs guarded by reader/writer
// providers, and parallel-for chunk fans. Submissions from inside a worker
// land on that worker's own deque; submissions from outside funnel through
// the global unassigned queue where any worker can claim or steal them.
package spool
