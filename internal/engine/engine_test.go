package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/model"
)

func TestRunBellProgram(t *testing.T) {
	e := newEngine(t, stub.New())
	j := newJob(t, e, bellProgram, 100)

	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
	require.Equal(t, model.JobDone, status(t, e, j))

	n, err := e.GetResults(j, model.ResultHistKeys, nil)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	keys := make([]byte, n)
	_, err = e.GetResults(j, model.ResultHistKeys, keys)
	require.NoError(t, err)
	require.Equal(t, []byte("11\x00"), keys)

	vals := make([]byte, 8)
	_, err = e.GetResults(j, model.ResultHistValues, vals)
	require.NoError(t, err)
	require.Equal(t, engine.EncodeUint64(100), vals)

	h, err := e.Histogram(j)
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"11": 100}, h.Counts())
}

func TestServiceOrderFollowsJobID(t *testing.T) {
	g := newGate()
	g.open()
	e := newEngine(t, g)

	jobs := make([]*engine.Job, 4)
	for i := range jobs {
		jobs[i] = newJob(t, e, bellProgram, 1)
	}

	// Submit out of order while the worker is down; service follows ids.
	e.Stop()
	for i := len(jobs) - 1; i >= 0; i-- {
		require.NoError(t, e.Submit(jobs[i]))
	}
	e.Start(context.Background())

	for _, j := range jobs {
		require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
	}
	require.Equal(t, []int64{jobs[0].ID(), jobs[1].ID(), jobs[2].ID(), jobs[3].ID()}, g.executed())
}

func TestSubmitOrderIsServiceOrder(t *testing.T) {
	g := newGate()
	e := newEngine(t, g)

	var ids []int64
	var jobs []*engine.Job
	for range 5 {
		j := newJob(t, e, bellProgram, 1)
		require.NoError(t, e.Submit(j))
		jobs = append(jobs, j)
		ids = append(ids, j.ID())
	}
	for range jobs {
		<-g.started
		g.next()
	}
	for _, j := range jobs {
		require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
	}
	require.Equal(t, ids, g.executed())
}

func TestCancelQueuedJobNeverExecutes(t *testing.T) {
	g := newGate()
	rec := &collector{}
	e := newEngine(t, g, engine.WithRecorder(rec))

	first := newJob(t, e, bellProgram, 1)
	second := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(first))
	<-g.started
	require.NoError(t, e.Submit(second))
	require.Equal(t, model.JobQueued, status(t, e, second))

	require.NoError(t, e.Cancel(second))
	require.Equal(t, model.JobCanceled, status(t, e, second))

	g.next()
	require.NoError(t, e.Wait(context.Background(), first, 2*time.Second))
	require.Equal(t, []int64{first.ID()}, g.executed())

	require.Eventually(t, func() bool {
		return len(rec.records()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	recs := rec.records()
	require.Equal(t, second.ID(), recs[0].JobID)
	require.Equal(t, model.JobCanceled, recs[0].Status)
	require.Equal(t, model.JobDone, recs[1].Status)
}

func TestCancelRunningJobDiscardsResult(t *testing.T) {
	g := newGate()
	e := newEngine(t, g)

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	<-g.started
	require.Equal(t, model.JobRunning, status(t, e, j))

	require.NoError(t, e.Cancel(j))
	require.Equal(t, model.JobCanceled, status(t, e, j))
	require.Equal(t, model.DeviceBusy, e.DeviceStatus(), "executor call still in flight")

	g.next()
	require.Eventually(t, func() bool {
		return e.DeviceStatus() == model.DeviceIdle
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, model.JobCanceled, status(t, e, j))
	_, err := e.GetResults(j, model.ResultHistKeys, nil)
	require.ErrorIs(t, err, engine.ErrInvalidArgument)
}

func TestCancelIsIdempotent(t *testing.T) {
	e := newEngine(t, stub.New())
	j := newJob(t, e, bellProgram, 1)

	require.NoError(t, e.Cancel(j))
	require.NoError(t, e.Cancel(j))
	require.Equal(t, model.JobCanceled, status(t, e, j))

	require.ErrorIs(t, e.Cancel(nil), engine.ErrInvalidArgument)
}

func TestCancelDoneJobFails(t *testing.T) {
	e := newEngine(t, stub.New())
	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))

	require.ErrorIs(t, e.Cancel(j), engine.ErrInvalidArgument)
	require.Equal(t, model.JobDone, status(t, e, j))
}

func TestSubmitStates(t *testing.T) {
	g := newGate()
	e := newEngine(t, g)

	require.ErrorIs(t, e.Submit(nil), engine.ErrInvalidArgument)

	running := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(running))
	<-g.started
	require.ErrorIs(t, e.Submit(running), engine.ErrBadState)

	queued := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(queued))
	require.NoError(t, e.Submit(queued), "resubmitting a queued job is a no-op")

	canceled := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Cancel(canceled))
	require.ErrorIs(t, e.Submit(canceled), engine.ErrBadState)

	g.open()
	require.NoError(t, e.Wait(context.Background(), running, 2*time.Second))
	require.ErrorIs(t, e.Submit(running), engine.ErrInvalidArgument)
	require.NoError(t, e.Wait(context.Background(), queued, 2*time.Second))
}

func TestFreeIsIdempotent(t *testing.T) {
	g := newGate()
	rec := &collector{}
	e := newEngine(t, g, engine.WithRecorder(rec))

	running := newJob(t, e, bellProgram, 1)
	queued := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(running))
	<-g.started
	require.NoError(t, e.Submit(queued))

	e.Free(queued)
	e.Free(queued)
	e.Free(running)
	e.Free(nil)

	g.next()
	require.Eventually(t, func() bool {
		return e.DeviceStatus() == model.DeviceIdle
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []int64{running.ID()}, g.executed())
	require.Eventually(t, func() bool {
		return len(rec.records()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, e.Submit(queued), engine.ErrInvalidArgument)
	require.ErrorIs(t, e.Wait(context.Background(), running, time.Second), engine.ErrInvalidArgument)
}

func TestEmptyProgramSkipsExecutor(t *testing.T) {
	exec := stub.New()
	e := newEngine(t, exec)
	j := newJob(t, e, "", 10)

	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
	require.Zero(t, exec.Calls())

	n, err := e.GetResults(j, model.ResultHistValues, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestExecutorErrorCompletesJobEmpty(t *testing.T) {
	g := newGate()
	g.err = errors.New("simulator crashed")
	g.open()
	e := newEngine(t, g)

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))

	h, err := e.Histogram(j)
	require.NoError(t, err)
	require.Zero(t, h.Len())

	info, err := e.Describe(j)
	require.NoError(t, err)
	require.Equal(t, model.JobDone, info.Status)
	require.Contains(t, info.Error, "simulator crashed")
}

func TestMalformedResponseCompletesJobEmpty(t *testing.T) {
	g := newGate()
	g.output = `{"counts": {"01": 3`
	g.open()
	e := newEngine(t, g)

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))

	info, err := e.Describe(j)
	require.NoError(t, err)
	require.NotEmpty(t, info.Error)

	n, err := e.GetResults(j, model.ResultHistKeys, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPartlyMalformedResponseKeepsGoodEntries(t *testing.T) {
	g := newGate()
	g.output = `{"counts": {"01": 3, "10": x, "11": 5,}}`
	g.open()
	e := newEngine(t, g)

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))

	info, err := e.Describe(j)
	require.NoError(t, err)
	require.Empty(t, info.Error)

	h, err := e.Histogram(j)
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"01": 3, "11": 5}, h.Counts())
}

func TestDeviceStatusFollowsWorker(t *testing.T) {
	g := newGate()
	e := engine.New(g, testLogger())
	require.Equal(t, model.DeviceOffline, e.DeviceStatus())

	e.Start(context.Background())
	t.Cleanup(func() {
		g.open()
		e.Stop()
	})
	e.Start(context.Background())
	require.Equal(t, model.DeviceIdle, e.DeviceStatus())

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	<-g.started
	require.Equal(t, model.DeviceBusy, e.DeviceStatus())
	snap := e.Snapshot()
	require.Equal(t, j.ID(), snap.CurrentJob)
	require.Equal(t, "gate", snap.Executor)

	g.next()
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
	require.Equal(t, model.DeviceIdle, e.DeviceStatus())

	e.Stop()
	require.Equal(t, model.DeviceOffline, e.DeviceStatus())
	e.Stop()
}

func TestExecutorInitFailureLeavesDeviceOffline(t *testing.T) {
	initErr := errors.New("no simulator library")
	e := engine.New(stub.New(stub.WithInitError(initErr)), testLogger())

	e.Start(context.Background())
	t.Cleanup(e.Stop)

	require.Eventually(t, func() bool {
		return e.InitError() != nil
	}, 2*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, e.InitError(), initErr)
	require.Equal(t, model.DeviceOffline, e.DeviceStatus())
	require.Equal(t, initErr.Error(), e.Snapshot().InitError)

	s := e.AllocSession()
	require.ErrorIs(t, e.InitSession(context.Background(), s), engine.ErrBadState)
}

func TestWaitFailsWhenExecutorInitFails(t *testing.T) {
	initErr := errors.New("no simulator library")
	exec := &slowInitExecutor{gateExecutor: newGate(), release: make(chan struct{}), err: initErr}
	e := engine.New(exec, testLogger())
	e.Start(context.Background())
	t.Cleanup(e.Stop)

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))

	errc := make(chan error, 1)
	go func() { errc <- e.Wait(context.Background(), j, 5*time.Second) }()
	close(exec.release)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, engine.ErrFatal)
		require.ErrorIs(t, err, initErr)
		require.Equal(t, engine.StatusFatal, engine.Code(err))
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by executor init failure")
	}
	require.Equal(t, model.JobQueued, status(t, e, j))
}

func TestStartWaitsForStopInProgress(t *testing.T) {
	g := newGate()
	e := newEngine(t, g)

	j := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(j))
	<-g.started

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	// Stop is now blocked on the executing job.
	time.Sleep(50 * time.Millisecond)

	started := make(chan struct{})
	go func() {
		e.Start(context.Background())
		close(started)
	}()

	select {
	case <-started:
		t.Fatal("Start returned while Stop was still in progress")
	case <-time.After(50 * time.Millisecond):
	}

	g.next()
	<-stopped
	<-started

	require.Eventually(t, func() bool {
		return e.DeviceStatus() == model.DeviceIdle
	}, 2*time.Second, 5*time.Millisecond)

	next := newJob(t, e, bellProgram, 1)
	require.NoError(t, e.Submit(next))
	g.next()
	require.NoError(t, e.Wait(context.Background(), next, 2*time.Second))
}

func TestSubmitWhileStoppedStaysQueued(t *testing.T) {
	exec := stub.New()
	e := newEngine(t, exec)
	j := newJob(t, e, bellProgram, 1)

	e.Stop()
	require.NoError(t, e.Submit(j))
	require.Equal(t, model.JobQueued, status(t, e, j))
	require.Equal(t, model.DeviceOffline, e.DeviceStatus())
	require.Zero(t, exec.Calls())

	e.Start(context.Background())
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
}

func TestExecutionSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e := newEngine(t, stub.New(), engine.WithTracerProvider(tp))
	j := newJob(t, e, bellProgram, 5)
	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "engine.execute", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, j.ID(), attrs["job.id"])
	require.Equal(t, int64(5), attrs["job.shots"])
	require.Equal(t, "stub", attrs["executor"])
}

func TestRecordersFanOut(t *testing.T) {
	a, b := &collector{}, &collector{}
	e := newEngine(t, stub.New(), engine.WithRecorder(engine.Recorders{a, nil, b}))

	j := newJob(t, e, bellProgram, 3)
	require.NoError(t, e.Submit(j))
	require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))

	require.Eventually(t, func() bool {
		return len(a.records()) == 1 && len(b.records()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec := a.records()[0]
	require.Equal(t, j.ID(), rec.JobID)
	require.Equal(t, model.JobDone, rec.Status)
	require.Equal(t, uint64(3), rec.Shots)
	require.Equal(t, map[string]uint64{"11": 3}, rec.Counts)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.DurationMS)
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want engine.Status
	}{
		{nil, engine.StatusSuccess},
		{engine.ErrInvalidArgument, engine.StatusInvalidArgument},
		{errors.Join(errors.New("ctx"), engine.ErrBadState), engine.StatusBadState},
		{engine.ErrNotSupported, engine.StatusNotSupported},
		{engine.ErrTimeout, engine.StatusTimeout},
		{errors.New("boom"), engine.StatusFatal},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, engine.Code(tt.err), "err %v", tt.err)
	}
	require.Equal(t, "bad_state", engine.StatusBadState.String())
}
