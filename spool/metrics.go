// File: spool/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduling counters, exposed as a snapshot via Pool.Stats.

package spool

import "sync/atomic"

type poolMetrics struct {
	enqueued atomic.Int64
	executed atomic.Int64
	held     atomic.Int64
	steals   atomic.Int64
	flushes  atomic.Int64
	attaches atomic.Int64
}
