package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/scheduler"
)

type fakeSource struct {
	summary *model.BatchSummary
	results map[string]*model.PipelineResult
}

func (f *fakeSource) LatestSummary() *model.BatchSummary { return f.summary }

func (f *fakeSource) Result(ticker string) (*model.PipelineResult, bool) {
	r, ok := f.results[ticker]
	return r, ok
}

func (f *fakeSource) Status() scheduler.Status {
	return scheduler.Status{Instruments: len(f.results), Cycles: 1}
}

type fakeHistory struct {
	results []*model.PipelineResult
	err     error
	since   time.Time
	symbol  string
}

func (f *fakeHistory) Latest(_ context.Context, symbol string) (*model.PipelineResult, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	for i := len(f.results) - 1; i >= 0; i-- {
		if f.results[i].Symbol == symbol {
			return f.results[i], true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeHistory) History(_ context.Context, symbol string, since time.Time) ([]*model.PipelineResult, error) {
	f.symbol, f.since = symbol, since
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.PipelineResult
	for _, r := range f.results {
		if r.Symbol == symbol && !r.FinishedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(src Source, opts ...Option) (*Server, *metrics.Recorder) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return New(":0", src, reg, zerolog.Nop(), opts...), m
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body.Message)
}

func TestSummaryEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec, _ := get(t, s, "/api/summary")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	src := &fakeSource{summary: &model.BatchSummary{
		CycleID:   "c1",
		StartedAt: time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
		Total:     1,
		Succeeded: 1,
		Counts:    map[model.Signal]int{model.SignalBuy: 1},
	}}
	s, _ = newTestServer(src)
	rec, body := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]any)
	assert.Equal(t, "c1", data["cycle_id"])
	assert.Equal(t, float64(1), data["counts"].(map[string]any)["BUY"])
}

func TestResultEndpoint(t *testing.T) {
	src := &fakeSource{results: map[string]*model.PipelineResult{
		"AAPL": {Symbol: "AAPL", Success: true, StageReached: model.StageRecommendation},
	}}
	s, _ := newTestServer(src)

	rec, body := get(t, s, "/api/results/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]any)
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, float64(5), data["stage_reached"])

	rec, _ = get(t, s, "/api/results/TSLA")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec, body := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body.Data.(map[string]any)["cycles"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, m := newTestServer(&fakeSource{})
	m.ObserveCache("live", true)

	rec, _ := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sentinel_cache_requests_total")
}

func TestHistoryEndpoint(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	h := &fakeHistory{results: []*model.PipelineResult{
		{Symbol: "AAPL", Success: true, FinishedAt: now.AddDate(0, 0, -10)},
		{Symbol: "AAPL", Success: true, FinishedAt: now.AddDate(0, 0, -2)},
	}}
	s, _ := newTestServer(&fakeSource{}, WithHistory(h), WithClock(func() time.Time { return now }))

	rec, body := get(t, s, "/api/history/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", h.symbol)
	assert.True(t, h.since.Equal(now.AddDate(0, 0, -7)))
	assert.Len(t, body.Data.([]any), 1)

	rec, body = get(t, s, "/api/history/AAPL?days=30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Data.([]any), 2)

	rec, body = get(t, s, "/api/history/MSFT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Data.([]any))

	rec, _ = get(t, s, "/api/history/AAPL?days=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = get(t, s, "/api/history/AAPL?days=week")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpointErrors(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec, _ := get(t, s, "/api/history/AAPL")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s, _ = newTestServer(&fakeSource{}, WithHistory(&fakeHistory{err: errors.New("db closed")}))
	rec, _ = get(t, s, "/api/history/AAPL")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResultEndpointFallsBackToStoredResult(t *testing.T) {
	h := &fakeHistory{results: []*model.PipelineResult{
		{Symbol: "TSLA", Success: true, StageReached: model.StageRecommendation},
	}}
	s, _ := newTestServer(&fakeSource{}, WithHistory(h))

	rec, body := get(t, s, "/api/results/tsla")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TSLA", body.Data.(map[string]any)["symbol"])

	rec, _ = get(t, s, "/api/results/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
