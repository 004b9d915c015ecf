package engine

import (
	"container/heap"
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/histogram"
	"github.com/seantiz/qdevice/internal/model"
)

// Start launches the worker and record goroutines and marks the device
// Idle. It is a no-op if the worker is already running and waits for a Stop
// in progress to finish first. ctx bounds executor initialization; executor
// calls outlive its cancellation so that Stop never aborts a job mid-run.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.stopping {
		e.work.Wait()
	}
	if e.running {
		return
	}
	e.running = true
	e.initErr = nil
	e.workerDone = make(chan struct{})
	if e.recStop == nil {
		e.recStop = make(chan struct{})
		e.recDone = make(chan struct{})
		go e.recordLoop(e.recStop, e.recDone)
	}
	e.refreshStatusLocked()

	go e.run(ctx, e.workerDone)
}

// Stop asks the worker to exit, waits for it, delivers every pending job
// record and marks the device Offline. A job that is executing finishes its
// executor call first. Queued jobs stay queued and are serviced after the
// next Start. Records of jobs canceled while stopped are delivered by the
// next Start or Stop.
func (e *Engine) Stop() {
	e.mu.Lock()
	for e.stopping {
		e.work.Wait()
	}
	e.stopping = true
	var done chan struct{}
	if e.running {
		done = e.workerDone
	}
	recStop, recDone := e.recStop, e.recDone
	e.work.Broadcast()
	e.mu.Unlock()

	if done != nil {
		<-done
	}
	if recStop != nil {
		close(recStop)
		<-recDone
	}
	e.flushRecords()

	e.mu.Lock()
	e.running = false
	e.stopping = false
	e.recStop, e.recDone = nil, nil
	e.setStatusLocked(model.DeviceOffline)
	e.work.Broadcast()
	e.mu.Unlock()
}

// InitError returns the error of the last failed executor initialization,
// or nil.
func (e *Engine) InitError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initErr
}

// run is the worker body. It owns every Queued to Running transition.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	caps := e.executor.Capabilities()
	if err := e.executor.Init(ctx); err != nil {
		e.logger.Error("executor init failed, device offline", "executor", caps.Name, "error", err)
		e.mu.Lock()
		e.initErr = err
		e.running = false
		e.setStatusLocked(model.DeviceOffline)
		e.mu.Unlock()
		e.broadcastDone()
		return
	}
	e.logger.Info("worker started", "executor", caps.Name)

	execCtx := context.WithoutCancel(ctx)

	e.mu.Lock()
	for {
		for e.pending.Len() == 0 && !e.stopping {
			e.work.Wait()
		}
		if e.stopping {
			e.mu.Unlock()
			e.logger.Info("worker stopped", "pending", e.pendingLen())
			return
		}

		j := heap.Pop(&e.pending).(*Job)
		queueDepth.Set(float64(e.pending.Len()))
		e.current = j
		e.executing = true
		e.setJobStatusLocked(j, model.JobRunning)
		e.setStatusLocked(model.DeviceBusy)
		req := j.request()
		e.mu.Unlock()

		out, execErr := e.execute(execCtx, req)

		e.mu.Lock()
		e.executing = false
		if e.current != j {
			e.logger.Info("discarding result of canceled job", "job_id", j.id)
			e.refreshStatusLocked()
			continue
		}

		results, err := histogram.Decode(out)
		if errors.Is(err, histogram.ErrPartial) {
			e.logger.Warn("skipped malformed result entries", "job_id", j.id, "error", err)
			err = nil
		}
		if execErr != nil {
			err = execErr
		}
		if err != nil {
			e.logger.Error("job failed", "job_id", j.id, "error", err)
			j.err = err.Error()
			results = histogram.Empty()
		}
		j.results = results
		j.raw = out
		e.current = nil
		e.setJobStatusLocked(j, model.JobDone)
		e.refreshStatusLocked()
		rec := j.recordLocked()
		e.mu.Unlock()

		e.broadcastDone()
		e.record(rec)
		e.logger.Info("job done", "job_id", rec.JobID, "outcomes", results.Len(), "duration_ms", rec.DurationMS)

		e.mu.Lock()
	}
}

func (e *Engine) pendingLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Len()
}

// execute runs one request on the executor. An empty program yields an
// empty response without calling it.
func (e *Engine) execute(ctx context.Context, req backend.Request) (string, error) {
	if req.Program == "" {
		return "", nil
	}

	ctx, span := e.tracer.Start(ctx, "engine.execute", trace.WithAttributes(
		attribute.Int64("job.id", req.JobID),
		attribute.Int64("job.shots", int64(req.Config.Shots)),
		attribute.String("job.format", req.Format),
		attribute.String("executor", e.executor.Capabilities().Name),
	))
	defer span.End()

	req.LogWriter = func(line string) {
		e.logger.Debug("executor output", "job_id", req.JobID, "line", line)
	}

	start := time.Now()
	res, err := e.executor.Execute(ctx, req)
	executionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return res.Output, nil
}
