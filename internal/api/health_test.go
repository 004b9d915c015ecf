package api

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/engine"
)

func TestHealthzEndpoint(t *testing.T) {
	env := newTestServer(t)

	var body healthResponse
	code := env.do(t, http.MethodGet, "/healthz", nil, &body)

	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "idle", body.Device)
}

func TestDeviceEndpoint(t *testing.T) {
	env := newTestServer(t)

	var snap engine.Snapshot
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/device", nil, &snap))
	require.Equal(t, "test-device", snap.Name)
	require.Equal(t, "stub", snap.Executor)
	require.Zero(t, snap.Pending)
}

func TestBackendsEndpoint(t *testing.T) {
	env := newTestServer(t)

	var infos []backend.Info
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/backends", nil, &infos))
	require.Len(t, infos, 1)
	require.Equal(t, "stub", infos[0].Name)
	require.Contains(t, infos[0].Capabilities.SupportedFormats, "qasm2")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)

	// Make a request to generate metrics.
	env.do(t, http.MethodGet, "/healthz", nil, nil)

	resp, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	contentType := resp.Header.Get("Content-Type")
	require.True(t, strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/openmetrics"),
		"Content-Type = %q, expected prometheus format", contentType)

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(bodyBytes)

	for _, name := range []string{
		"qdevice_http_requests_total",
		"qdevice_http_request_duration_seconds",
		"qdevice_http_requests_in_flight",
		"qdevice_http_engine_errors_total",
		"qdevice_jobs_total",
		"qdevice_device_status",
	} {
		require.Contains(t, body, name)
	}
}
