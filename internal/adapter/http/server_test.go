package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/station-climate-etl/internal/adapter/http"
	"github.com/couchcryptid/station-climate-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err     error
	lastRun time.Time
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockReadiness) LastRun() time.Time { return m.lastRun }

func newTestServer(ready *mockReadiness) *httpadapter.Server {
	return httpadapter.NewServer(":0", ready, nil, slog.Default())
}

func get(t *testing.T, srv http.Handler, path string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]string
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthzReturns200(t *testing.T) {
	rec, body := get(t, newTestServer(&mockReadiness{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	last := time.Date(2024, 9, 21, 6, 0, 0, 0, time.UTC)
	rec, body := get(t, newTestServer(&mockReadiness{lastRun: last}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "2024-09-21T06:00:00Z", body["last_run"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec, body := get(t, newTestServer(&mockReadiness{err: fmt.Errorf("not ready yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := get(t, newTestServer(&mockReadiness{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsEndpoint_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsForTesting()
	reg.MustRegister(metrics.SeriesPublished)
	metrics.SeriesPublished.Add(3)

	srv := httpadapter.NewServer(":0", &mockReadiness{}, reg, slog.Default())
	rec, _ := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "station_etl_series_published_total 3")
	assert.NotContains(t, rec.Body.String(), "go_goroutines")
}
