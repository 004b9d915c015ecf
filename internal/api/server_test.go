package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/backend/stub"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/store"
)

const bellProgram = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
x q[0];
cx q[0], q[1];
measure q -> c;
`

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	store store.Store
	exec  *stub.Executor
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	return newTestServerWith(t, stub.New())
}

func newTestServerWith(t *testing.T, exec *stub.Executor) *testEnv {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	reg := backend.NewRegistry()
	reg.Register(stub.Name, exec)

	eng := engine.New(exec, logger, engine.WithRecorder(s), engine.WithDeviceName("test-device"))
	eng.Start(context.Background())
	t.Cleanup(eng.Stop)

	srv := NewServer(":0", s, reg, eng, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, store: s, exec: exec}
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, path)
	}
	return resp.StatusCode
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestServer(t)
	env.srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	resp, err := http.Get(env.ts.URL + "/test")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPanicRecovery(t *testing.T) {
	env := newTestServer(t)
	env.srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	resp, err := http.Get(env.ts.URL + "/panic")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	env := newTestServer(t)
	env.srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req, _ := http.NewRequest("OPTIONS", env.ts.URL+"/test", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWriteEngineErrorStatus(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		err  error
		want int
	}{
		{engine.ErrInvalidArgument, http.StatusBadRequest},
		{engine.ErrBadState, http.StatusConflict},
		{engine.ErrNotSupported, http.StatusNotImplemented},
		{engine.ErrTimeout, http.StatusRequestTimeout},
		{engine.ErrFatal, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.srv.writeEngineError(rec, tt.err)
			require.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, engine.Code(tt.err).String(), body["code"])
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	exec := stub.New()
	eng := engine.New(exec, logger)
	srv := NewServer("127.0.0.1:0", nil, backend.NewRegistry(), eng, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
