package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/metrics"
	"github.com/JakeFAU/parlcrawl/internal/scheduler"
)

type fakeStatus struct{ status scheduler.Status }

func (f fakeStatus) Status() scheduler.Status { return f.status }

type fakeLister struct {
	keys []crawler.ProfileKey
	err  error
}

func (f fakeLister) List(context.Context) ([]crawler.ProfileKey, error) { return f.keys, f.err }

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, zap.NewNop()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerStatus(t *testing.T) {
	t.Parallel()

	src := fakeStatus{scheduler.Status{
		Running:    true,
		RunID:      "run-1",
		Site:       "au-bills",
		StartedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Pending:    3,
		Dispatched: 10,
		Records:    map[crawler.RecordKind]int{crawler.KindBill: 4},
	}}
	rec := serve(t, NewServer(src, nil, nil), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["running"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.InDelta(t, 3, got["pending"], 0)
	assert.Equal(t, map[string]any{"bill": float64(4)}, got["records"])
}

func TestServerStatusUnavailable(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), "/v1/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerProfiles(t *testing.T) {
	t.Parallel()

	lister := fakeLister{keys: []crawler.ProfileKey{
		{EntityID: "R36", DisplayName: "Abbott, Tony"},
		{EntityID: crawler.ProfileID(crawler.DocAUBiography, "00AMV"), DisplayName: "Abbott, Tony"},
	}}
	rec := serve(t, NewServer(nil, lister, nil), "/v1/profiles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2,"profiles":[
		{"entity_id":"R36","display_name":"Abbott, Tony"},
		{"type":"au.biography","entity_id":"00AMV","display_name":"Abbott, Tony"}]}`, rec.Body.String())

	rec = serve(t, NewServer(nil, fakeLister{err: errors.New("boom")}, nil), "/v1/profiles")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(t, NewServer(nil, nil, nil), "/v1/profiles")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	metrics.Init()
	s := NewServer(nil, nil, nil)
	_ = serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServerListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(nil, nil, nil).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
