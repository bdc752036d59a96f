package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/config"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/kernel"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	k := kernel.New(logging.NewNop(), kernel.Options{ConsoleOut: io.Discard})
	return New(config.Default(), logging.NewNop(), k, nil)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"boot_id"`)
}

func TestListProcessesIncludesConsoleTask(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s, "/processes")

	require.Equal(t, http.StatusOK, w.Code)
	// The console kernel task is admitted at boot.
	assert.Contains(t, w.Body.String(), `"name":"console"`)
	assert.Contains(t, w.Body.String(), `"kind":"kernel-task"`)
}

func TestGetProcessUnknown(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/processes/9999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/processes/bogus").Code)
}

func TestSchedulerStats(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s, "/scheduler")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total"`)
	assert.Contains(t, w.Body.String(), `"runnable"`)
}

func TestSyscallStats(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s, "/syscalls")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total"`)
	assert.Contains(t, w.Body.String(), `"by_op"`)
}

func TestSnapshotWithMetricsDisabled(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s, "/metrics/snapshot")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFeedInputUnknownPID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/input",
		strings.NewReader(`{"pid": 9999, "data": "hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedInputMalformed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/input", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
