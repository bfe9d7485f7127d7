// File: spool/foreach.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Parallel-for: one job per contiguous chunk, one chunk per worker slot.
// Leftover elements go one apiece to the leading chunks; with more workers
// than elements every chunk holds a single element and none is empty.

package spool

import "github.com/momentics/spool/api"

// ForEach enqueues body over every element of items, chunked across the
// pool's workers. It returns one job per chunk; all share the given
// prerequisites. Completion is observed by polling the returned jobs or by
// chaining them as prerequisites of a follow-up job.
func ForEach[S ~[]E, E any](p *Pool, items S, body func(*E), prerequisites ...api.Completable) ([]*Job, error) {
	bounds := splitRange(len(items), p.NumWorkers())
	jobs := make([]*Job, 0, len(bounds))
	for _, b := range bounds {
		lo, hi := b[0], b[1]
		j, err := p.EnqueueJob(func() {
			for i := lo; i < hi; i++ {
				body(&items[i])
			}
		}, prerequisites...)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// splitRange cuts [0, length) into at most maxChunks contiguous half-open
// intervals.
func splitRange(length, maxChunks int) [][2]int {
	if length <= 0 || maxChunks <= 0 {
		return nil
	}
	if maxChunks >= length {
		bounds := make([][2]int, length)
		for i := 0; i < length; i++ {
			bounds[i] = [2]int{i, i + 1}
		}
		return bounds
	}
	chunkSize := length / maxChunks
	chunkExtra := length % maxChunks
	bounds := make([][2]int, 0, maxChunks)
	step := 0
	for i := 0; i < maxChunks; i++ {
		chunk := chunkSize
		if i < chunkExtra {
			chunk++
		}
		bounds = append(bounds, [2]int{step, step + chunk})
		step += chunk
	}
	return bounds
}
