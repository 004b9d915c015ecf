package engine

import (
	"context"
	"errors"

	"github.com/seantiz/qdevice/internal/model"
)

// Recorder receives the summary of every job that reaches Done or Canceled.
// Record is called exactly once per job, in terminal order, from the
// engine's record goroutine. A slow recorder delays later records but never
// an engine operation.
type Recorder interface {
	Record(ctx context.Context, rec model.JobRecord) error
}

// Recorders fans a record out to several recorders.
type Recorders []Recorder

// Record implements Recorder. Every recorder is called; errors are joined.
func (rs Recorders) Record(ctx context.Context, rec model.JobRecord) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record queues rec for the record goroutine. It never blocks on the
// recorder.
func (e *Engine) record(rec model.JobRecord) {
	if e.recorder == nil {
		return
	}
	e.recMu.Lock()
	e.recs = append(e.recs, rec)
	e.recMu.Unlock()

	select {
	case e.recWake <- struct{}{}:
	default:
	}
}

// recordLoop delivers queued records until stop is closed, then delivers
// whatever is left and exits.
func (e *Engine) recordLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		e.flushRecords()
		select {
		case <-e.recWake:
		case <-stop:
			e.flushRecords()
			return
		}
	}
}

// flushRecords hands every queued record to the recorder, logging failures.
// Only one goroutine runs it at a time: the record goroutine, or Stop once
// that goroutine has exited.
func (e *Engine) flushRecords() {
	for {
		e.recMu.Lock()
		batch := e.recs
		e.recs = nil
		e.recMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, rec := range batch {
			if err := e.recorder.Record(context.Background(), rec); err != nil {
				e.logger.Error("failed to record job", "job_id", rec.JobID, "status", rec.Status, "error", err)
			}
		}
	}
}
