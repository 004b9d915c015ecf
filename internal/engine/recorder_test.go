package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/model"
)

func TestSlowRecorderDoesNotBlockOperations(t *testing.T) {
	rec := &slowRecorder{delay: 500 * time.Millisecond}
	e := newEngine(t, stub.New(), engine.WithRecorder(rec))

	canceled := newJob(t, e, bellProgram, 1)
	start := time.Now()
	require.NoError(t, e.Cancel(canceled))
	require.Less(t, time.Since(start), 100*time.Millisecond, "Cancel waited on the recorder")

	freed := newJob(t, e, bellProgram, 1)
	start = time.Now()
	e.Free(freed)
	require.Less(t, time.Since(start), 100*time.Millisecond, "Free waited on the recorder")

	first := newJob(t, e, bellProgram, 1)
	second := newJob(t, e, bellProgram, 1)
	start = time.Now()
	require.NoError(t, e.Submit(first))
	require.NoError(t, e.Submit(second))
	require.NoError(t, e.Wait(context.Background(), first, 2*time.Second))
	require.NoError(t, e.Wait(context.Background(), second, 2*time.Second))
	require.Less(t, time.Since(start), rec.delay, "worker waited on the recorder between jobs")

	require.Eventually(t, func() bool {
		return len(rec.records()) == 4
	}, 5*time.Second, 10*time.Millisecond)

	var ids []int64
	for _, r := range rec.records() {
		ids = append(ids, r.JobID)
	}
	require.Equal(t, []int64{canceled.ID(), freed.ID(), first.ID(), second.ID()}, ids)
}

func TestStopDeliversPendingRecords(t *testing.T) {
	rec := &slowRecorder{delay: 50 * time.Millisecond}
	e := newEngine(t, stub.New(), engine.WithRecorder(rec))

	var jobs []*engine.Job
	for range 3 {
		j := newJob(t, e, bellProgram, 1)
		require.NoError(t, e.Submit(j))
		jobs = append(jobs, j)
	}
	for _, j := range jobs {
		require.NoError(t, e.Wait(context.Background(), j, 2*time.Second))
	}

	e.Stop()
	require.Len(t, rec.records(), 3)
}

func TestRecordWhileStoppedIsDeliveredOnce(t *testing.T) {
	rec := &collector{}
	e := newEngine(t, stub.New(), engine.WithRecorder(rec))
	j := newJob(t, e, bellProgram, 1)

	e.Stop()
	require.NoError(t, e.Cancel(j))
	require.NoError(t, e.Cancel(j))

	e.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(rec.records()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	recs := rec.records()
	require.Len(t, recs, 1)
	require.Equal(t, j.ID(), recs[0].JobID)
	require.Equal(t, model.JobCanceled, recs[0].Status)
}
