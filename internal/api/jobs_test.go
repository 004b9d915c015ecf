package api

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/model"
)

type jobJSON struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Format    string `json:"program_format"`
	Error     string `json:"error"`
	Config    struct {
		Shots  uint64 `json:"shots"`
		Qubits int32  `json:"qubits"`
	} `json:"config"`
}

type sessionJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// newInitializedSession allocates and initializes a session over HTTP.
func newInitializedSession(t *testing.T, env *testEnv) string {
	t.Helper()
	var sess sessionJSON
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/v1/sessions", nil, &sess))
	require.Equal(t, "allocated", sess.Status)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/init", nil, &sess))
	require.Equal(t, "initialized", sess.Status)
	return sess.ID
}

// newProgramJob creates a job with program and shots set.
func newProgramJob(t *testing.T, env *testEnv, sid, program string, shots int) int64 {
	t.Helper()
	var job jobJSON
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/v1/sessions/"+sid+"/jobs", nil, &job))
	require.Equal(t, "created", job.Status)

	path := fmt.Sprintf("/v1/jobs/%d/params/", job.ID)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, path+"program", map[string]any{"value": program}, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, path+"shots", map[string]any{"value": shots}, nil))
	return job.ID
}

func TestJobLifecycle(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 100)
	base := fmt.Sprintf("/v1/jobs/%d", id)

	var job jobJSON
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, base+"/submit", nil, &job))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base+"/wait?timeout_ms=5000", nil, &job))
	require.Equal(t, "done", job.Status)
	require.Equal(t, uint64(100), job.Config.Shots)

	var raw struct {
		JobID  int64             `json:"job_id"`
		Keys   []string          `json:"keys"`
		Counts map[string]uint64 `json:"counts"`
		Total  uint64            `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base+"/results", nil, &raw))
	require.Equal(t, id, raw.JobID)
	require.Equal(t, []string{"11"}, raw.Keys)
	require.Equal(t, map[string]uint64{"11": 100}, raw.Counts)
	require.Equal(t, uint64(100), raw.Total)

	require.Eventually(t, func() bool {
		rec, err := env.store.GetRecord(context.Background(), id)
		return err == nil && rec.Status == model.JobDone
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base, nil, nil))
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base, nil, nil))
}

func TestRawResultViews(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 42)
	base := fmt.Sprintf("/v1/jobs/%d", id)

	env.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base+"/wait", nil, nil))

	get := func(kind string) []byte {
		resp, err := http.Get(env.ts.URL + base + "/results?kind=" + kind)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return b
	}

	require.Equal(t, []byte("11\x00"), get("hist_keys"))

	values := get("hist_values")
	require.Len(t, values, 8)
	require.Equal(t, uint64(42), binary.LittleEndian.Uint64(values))

	require.Contains(t, string(get("raw")), `"counts"`)

	require.Equal(t, http.StatusNotImplemented,
		env.do(t, http.MethodGet, base+"/results?kind=statevector_dense", nil, nil))
	require.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodGet, base+"/results?kind=bogus", nil, nil))
}

func TestResultsBeforeDone(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 1)

	code := env.do(t, http.MethodGet, fmt.Sprintf("/v1/jobs/%d/results", id), nil, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestWaitTimeout(t *testing.T) {
	env := newTestServerWith(t, stub.New(stub.WithDelay(time.Second)))
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 1)
	base := fmt.Sprintf("/v1/jobs/%d", id)

	env.do(t, http.MethodPost, base+"/submit", nil, nil)

	var body map[string]string
	require.Equal(t, http.StatusRequestTimeout, env.do(t, http.MethodGet, base+"/wait?timeout_ms=20", nil, &body))
	require.Equal(t, "timeout", body["code"])

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/wait?timeout_ms=-1", nil, nil))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/wait?timeout_ms=soon", nil, nil))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/wait?timeout_ms=9223372036855", nil, nil))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/wait?timeout_ms=18446744073709", nil, nil))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/cancel", nil, nil))
}

func TestCancelQueuedJob(t *testing.T) {
	env := newTestServerWith(t, stub.New(stub.WithDelay(200*time.Millisecond)))
	sid := newInitializedSession(t, env)
	first := newProgramJob(t, env, sid, bellProgram, 1)
	second := newProgramJob(t, env, sid, bellProgram, 1)

	env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/submit", first), nil, nil)
	env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/submit", second), nil, nil)

	var job jobJSON
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/cancel", second), nil, &job))
	require.Equal(t, "canceled", job.Status)

	// A canceled job never becomes done, so waiting on it is a state error.
	require.Equal(t, http.StatusConflict, env.do(t, http.MethodGet, fmt.Sprintf("/v1/jobs/%d/wait", second), nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, fmt.Sprintf("/v1/jobs/%d/wait", first), nil, nil))
}

func TestSetJobParamErrors(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 1)
	path := fmt.Sprintf("/v1/jobs/%d/params/", id)

	tests := []struct {
		name  string
		param string
		body  any
		want  int
	}{
		{"unknown parameter", "colour", map[string]any{"value": 1}, http.StatusBadRequest},
		{"zero shots", "shots", map[string]any{"value": 0}, http.StatusBadRequest},
		{"negative qubits", "qubits", map[string]any{"value": -2}, http.StatusBadRequest},
		{"format by name", "program_format", map[string]any{"value": "qasm2"}, http.StatusOK},
		{"format by number", "program_format", map[string]any{"value": 0}, http.StatusOK},
		{"unsupported format", "program_format", map[string]any{"value": "qasm3"}, http.StatusNotImplemented},
		{"unknown format name", "program_format", map[string]any{"value": "basic"}, http.StatusBadRequest},
		{"custom5", "custom5", map[string]any{"value": 1}, http.StatusNotImplemented},
		{"null value", "shots", map[string]any{"value": nil}, http.StatusOK},
		{"fractional", "shots", map[string]any{"value": 1.5}, http.StatusBadRequest},
		{"bad json", "shots", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, env.do(t, http.MethodPut, path+tt.param, tt.body, nil))
		})
	}

	env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/submit", id), nil, nil)
	code := env.do(t, http.MethodPut, path+"shots", map[string]any{"value": 5}, nil)
	require.Equal(t, http.StatusConflict, code)
}

func TestJobProperties(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 64)
	base := fmt.Sprintf("/v1/jobs/%d/properties/", id)

	var prop struct {
		Size  int `json:"size"`
		Value any `json:"value"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base+"id", nil, &prop))
	require.Equal(t, fmt.Sprint(id), prop.Value)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base+"shots", nil, &prop))
	require.Equal(t, 8, prop.Size)
	require.EqualValues(t, 64, prop.Value)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base+"program_format", nil, &prop))
	require.Equal(t, 4, prop.Size)
	require.EqualValues(t, 0, prop.Value)

	require.Equal(t, http.StatusNotImplemented, env.do(t, http.MethodGet, base+"custom5", nil, nil))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"colour", nil, nil))
}

func TestUnknownJob(t *testing.T) {
	env := newTestServer(t)

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/jobs/999", nil, nil))
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/v1/jobs/999/submit", nil, nil))
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/v1/jobs/999", nil, nil))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/jobs/abc", nil, nil))
}

func TestStreamEvents(t *testing.T) {
	env := newTestServerWith(t, stub.New(stub.WithDelay(50*time.Millisecond)))
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 3)

	resp, err := http.Get(fmt.Sprintf("%s/v1/jobs/%d/events", env.ts.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				events <- line
			}
		}
	}()

	// The first event is the current status.
	require.Contains(t, <-events, `"status":"created"`)

	env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/submit", id), nil, nil)

	var got []string
	for line := range events {
		got = append(got, line)
	}
	require.NotEmpty(t, got)
	require.Contains(t, got[0], `"status":"queued"`)
	require.Equal(t, "stream complete", got[len(got)-1])
	require.Contains(t, got[len(got)-2], `"status":"done"`)
}

func TestStreamEventsTerminalJob(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 1)
	env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/cancel", id), nil, nil)

	resp, err := http.Get(fmt.Sprintf("%s/v1/jobs/%d/events", env.ts.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"status":"canceled"`)
	require.Contains(t, string(body), "event: done")
}

func TestFreedJobIsInvalid(t *testing.T) {
	env := newTestServer(t)
	sid := newInitializedSession(t, env)
	id := newProgramJob(t, env, sid, bellProgram, 1)

	j, ok := env.srv.handles.job(id)
	require.True(t, ok)
	env.srv.engine.Free(j)

	var body map[string]string
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, fmt.Sprintf("/v1/jobs/%d/submit", id), nil, &body))
	require.Equal(t, engine.StatusInvalidArgument.String(), body["code"])
}
