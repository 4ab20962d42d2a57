// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"github.com/spoolworks/spool/lib/yenc"
)

// Job is one fetched article handed to the decode pipeline. Immutable
// after creation; consumed exactly once by a worker.
//
// At most one of the two payload carriers is meaningfully populated:
// Lines holds text lines with endings stripped, Raw holds byte chunks
// exactly as received. Both empty means the fetch produced no data for
// this article. A Job with a nil Article is the stop sentinel.
type Job struct {
	Article *Article
	Lines   [][]byte
	Raw     [][]byte
}

// Sentinel reports whether this job is the worker stop sentinel.
func (j Job) Sentinel() bool { return j.Article == nil }

// HasData reports whether the job carries any payload at all. A
// payload is absent only when both carriers are empty — a carrier
// holding zero-length entries still counts as present.
func (j Job) HasData() bool {
	return len(j.Lines) > 0 || len(j.Raw) > 0
}

// Size returns the raw payload byte count, used for store
// reserve-space accounting.
func (j Job) Size() int {
	return j.payload().Size()
}

func (j Job) payload() yenc.Payload {
	return yenc.Payload{Lines: j.Lines, Chunks: j.Raw}
}

// Queue is the bounded FIFO of decode jobs: the single synchronization
// point between the fetch layer (producer) and the decode workers
// (consumers). Push blocks while the queue is full, which is the
// producer-side half of the pipeline's backpressure.
type Queue struct {
	jobs chan Job
}

// NewQueue creates a queue holding at most capacity jobs.
func NewQueue(capacity int) *Queue {
	return &Queue{jobs: make(chan Job, capacity)}
}

// Push enqueues a job, blocking while the queue is full.
func (q *Queue) Push(job Job) {
	q.jobs <- job
}

// Pop dequeues the next job, blocking while the queue is empty.
func (q *Queue) Pop() Job {
	return <-q.jobs
}

// Depth returns the number of jobs currently queued.
func (q *Queue) Depth() int {
	return len(q.jobs)
}
