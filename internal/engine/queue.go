package engine

import (
	"container/heap"

	"github.com/seantiz/qdevice/internal/model"
)

// jobQueue is the pending registry: a min-heap of jobs keyed by id. Since
// ids are assigned at creation in increasing order, popping the minimum
// services the oldest pending job first. Each job tracks its heap index so
// a cancel can remove it in O(log n).
type jobQueue []*Job

func (q jobQueue) Len() int           { return len(q) }
func (q jobQueue) Less(i, k int) bool { return q[i].id < q[k].id }

func (q jobQueue) Swap(i, k int) {
	q[i], q[k] = q[k], q[i]
	q[i].heapIndex = i
	q[k].heapIndex = k
}

func (q *jobQueue) Push(x any) {
	j := x.(*Job)
	j.heapIndex = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.heapIndex = -1
	*q = old[:n-1]
	return j
}

// Submit queues j for execution and wakes the worker. It fails with
// ErrInvalidArgument for a nil, freed or Done job and with ErrBadState for a
// Running or Canceled one. Submitting a job that is already Queued is a
// no-op.
func (e *Engine) Submit(j *Job) error {
	if j == nil {
		return invalidf("nil job")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case j.freed:
		return invalidf("job %d was freed", j.id)
	case j.status == model.JobDone:
		return invalidf("job %d is already done", j.id)
	case j.status == model.JobQueued:
		return nil
	case !model.ValidTransition(j.status, model.JobQueued):
		return badStatef("job %d is %s", j.id, j.status)
	}

	heap.Push(&e.pending, j)
	e.setJobStatusLocked(j, model.JobQueued)
	queueDepth.Set(float64(e.pending.Len()))
	if e.running {
		e.refreshStatusLocked()
	}
	e.work.Broadcast()
	return nil
}

// Cancel stops j from running. A queued job is removed from the queue; a
// running job is detached from the worker, which discards its result when
// the executor call returns; a created job is canceled in place. Canceling
// a job that is already Canceled is a no-op. It fails with
// ErrInvalidArgument for a nil or Done job.
func (e *Engine) Cancel(j *Job) error {
	if j == nil {
		return invalidf("nil job")
	}

	e.mu.Lock()
	if j.status == model.JobDone {
		e.mu.Unlock()
		return invalidf("job %d is already done", j.id)
	}
	if !e.cancelLocked(j) {
		e.mu.Unlock()
		return nil
	}
	rec := j.recordLocked()
	e.mu.Unlock()

	e.broadcastDone()
	e.record(rec)
	return nil
}

// cancelLocked moves j to Canceled if it is not already terminal and
// reports whether it did. Callers hold e.mu.
func (e *Engine) cancelLocked(j *Job) bool {
	switch {
	case j.heapIndex >= 0:
		heap.Remove(&e.pending, j.heapIndex)
		queueDepth.Set(float64(e.pending.Len()))
	case e.current == j:
		// The executor call keeps running; the worker notices the job is no
		// longer current when it returns.
		e.current = nil
	case j.status != model.JobCreated:
		return false
	}
	e.setJobStatusLocked(j, model.JobCanceled)
	if e.running {
		e.refreshStatusLocked()
	}
	return true
}

// Free cancels j if needed and releases it. Further operations on j fail
// with ErrInvalidArgument. Free is a no-op for a nil or already freed job.
func (e *Engine) Free(j *Job) {
	if j == nil {
		return
	}

	e.mu.Lock()
	if j.freed {
		e.mu.Unlock()
		return
	}
	canceled := j.status != model.JobDone && e.cancelLocked(j)
	var rec model.JobRecord
	if canceled {
		rec = j.recordLocked()
	}
	j.freed = true
	j.program = ""
	e.mu.Unlock()

	e.broker.Forget(j.id)
	if canceled {
		e.broadcastDone()
		e.record(rec)
	}
}
