package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/model"
)

func sampleResult(symbol string, success bool) *model.PipelineResult {
	finished := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)
	res := &model.PipelineResult{
		Symbol:       symbol,
		Name:         symbol + " Inc",
		StageReached: model.StageRecommendation,
		Success:      success,
		Quote:        &model.LiveQuote{Symbol: symbol, Price: 100},
		Risk: &model.RiskLevels{
			Symbol: symbol, CurrentPrice: 100, StopLoss: 96, TakeProfit1: 106, TakeProfit2: 110,
			RiskRewardRatio1: 1.5, RiskRewardRatio2: 2.5,
		},
		Outcomes:   []model.StageOutcome{{Stage: model.StagePrice, Status: model.StatusOK}},
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
	if success {
		res.Recommendation = &model.Recommendation{Symbol: symbol, Signal: model.SignalBuy, Confidence: 80, Reasoning: "r"}
	}
	return res
}

func sampleSummary() *model.BatchSummary {
	return &model.BatchSummary{
		CycleID:    "5f0c8f8e-7d1c-4a3c-9a51-8e3f9b8d2a10",
		StartedAt:  time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 4, 15, 1, 0, 0, time.UTC),
		Total:      2,
		Succeeded:  1,
		Counts:     map[model.Signal]int{model.SignalBuy: 1},
		Skipped:    []model.SkippedInstrument{{Symbol: "BAD", Stage: model.StagePrice, Reason: "x"}},
	}
}

func TestNewResultRowFlattens(t *testing.T) {
	row, err := newResultRow(sampleResult("AAPL", true))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", row.Symbol)
	assert.Equal(t, 5, row.StageReached)
	assert.Equal(t, "BUY", row.Signal)
	assert.Equal(t, 96.0, row.StopLoss)
	assert.Equal(t, 1.5, row.RiskReward1)

	var decoded model.PipelineResult
	require.NoError(t, json.Unmarshal(row.Payload, &decoded))
	assert.Equal(t, "AAPL", decoded.Symbol)
}

func TestSQLiteRecorder(t *testing.T) {
	ctx := context.Background()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordResult(ctx, sampleResult("AAPL", true)))
	require.NoError(t, r.RecordResult(ctx, sampleResult("AAPL", false)))
	require.NoError(t, r.RecordCycle(ctx, sampleSummary()))

	n, err := r.CountResults(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteRecorderHistory(t *testing.T) {
	ctx := context.Background()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	at := func(res *model.PipelineResult, ts time.Time) *model.PipelineResult {
		res.StartedAt, res.FinishedAt = ts.Add(-time.Second), ts
		return res
	}
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	old := at(sampleResult("AAPL", true), now.AddDate(0, 0, -10))
	recent := at(sampleResult("AAPL", true), now.AddDate(0, 0, -2))
	recent.Recommendation.Confidence = 91
	failed := at(sampleResult("AAPL", false), now.Add(-time.Hour))
	other := at(sampleResult("MSFT", true), now.Add(-time.Hour))
	for _, res := range []*model.PipelineResult{old, recent, failed, other} {
		require.NoError(t, r.RecordResult(ctx, res))
	}

	hist, err := r.History(ctx, "AAPL", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 91.0, hist[0].Recommendation.Confidence)
	assert.True(t, hist[0].FinishedAt.Equal(recent.FinishedAt))

	all, err := r.History(ctx, "AAPL", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	latest, ok, err := r.Latest(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 91.0, latest.Recommendation.Confidence, "failed runs are not recommendations")

	_, ok, err = r.Latest(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONFileRecorder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := NewJSONFileRecorder(dir)
	require.NoError(t, err)

	require.NoError(t, r.RecordResult(ctx, sampleResult("EURUSD=X", true)))
	require.NoError(t, r.RecordResult(ctx, sampleResult("MSFT", false)))
	require.NoError(t, r.RecordCycle(ctx, sampleSummary()))

	recDir := filepath.Join(dir, "recommendations")
	assert.FileExists(t, filepath.Join(recDir, "EURUSD_X_20240304_153000.json"))
	assert.FileExists(t, filepath.Join(recDir, "MSFT_20240304_153000.json"))
	assert.FileExists(t, filepath.Join(recDir, "summary_20240304_150000.json"))

	f, err := os.Open(filepath.Join(recDir, "history.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 1, "only successful recommendations are appended")
	assert.Contains(t, lines[0], `"recommendation":"BUY"`)
}

type failingRecorder struct{ NoopRecorder }

func (failingRecorder) RecordResult(context.Context, *model.PipelineResult) error {
	return errors.New("disk full")
}

func TestMultiJoinsErrors(t *testing.T) {
	m := Multi{NewNoopRecorder(), &failingRecorder{}}
	err := m.RecordResult(context.Background(), sampleResult("AAPL", true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, m.RecordCycle(context.Background(), sampleSummary()))
	assert.NoError(t, m.Close())
}
