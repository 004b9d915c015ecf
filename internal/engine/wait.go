package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/seantiz/qdevice/internal/model"
)

// completion returns the channel closed at the next terminal transition.
// Waiters must take it before reading job status so that a transition
// between the read and the select is never missed.
func (e *Engine) completion() <-chan struct{} {
	e.doneMu.Lock()
	defer e.doneMu.Unlock()
	return e.doneCh
}

// broadcastDone wakes every waiter. Called after a job reached Done or
// Canceled, outside the registry lock.
func (e *Engine) broadcastDone() {
	e.doneMu.Lock()
	defer e.doneMu.Unlock()
	close(e.doneCh)
	e.doneCh = make(chan struct{})
}

// Wait blocks until j is Done, timeout elapses or ctx is done. A zero
// timeout waits without a deadline. Wakeups caused by other jobs are
// absorbed; the timeout budget is measured from the call, not per wakeup.
//
// It returns nil once j is Done, ErrTimeout when the budget runs out,
// ErrBadState if j was canceled, since a canceled job never completes, and
// ErrFatal if executor initialization failed and j can no longer run.
func (e *Engine) Wait(ctx context.Context, j *Job, timeout time.Duration) error {
	if j == nil {
		return invalidf("nil job")
	}
	if timeout < 0 {
		return invalidf("negative timeout %s", timeout)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		done := e.completion()

		e.mu.Lock()
		status, freed, initErr := j.status, j.freed, e.initErr
		e.mu.Unlock()

		switch {
		case freed:
			return invalidf("job %d was freed", j.id)
		case status == model.JobDone:
			waitsTotal.WithLabelValues(waitCompleted).Inc()
			return nil
		case status == model.JobCanceled:
			waitsTotal.WithLabelValues(waitCanceled).Inc()
			return badStatef("job %d was canceled", j.id)
		case initErr != nil:
			waitsTotal.WithLabelValues(waitFailed).Inc()
			return fmt.Errorf("%w: job %d cannot run: executor init: %w", ErrFatal, j.id, initErr)
		}

		select {
		case <-done:
		case <-deadline:
			waitsTotal.WithLabelValues(waitTimeout).Inc()
			return fmt.Errorf("%w: job %d not done after %s", ErrTimeout, j.id, timeout)
		case <-ctx.Done():
			waitsTotal.WithLabelValues(waitTimeout).Inc()
			return fmt.Errorf("%w: job %d: %w", ErrTimeout, j.id, ctx.Err())
		}
	}
}
