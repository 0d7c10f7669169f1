package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/notifier"
)

type call struct {
	signal     model.Signal
	confidence float64
	abort      bool
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   map[string]call
	seen    []string
	onStart func(symbol string, ctx context.Context)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, inst model.Instrument) *model.PipelineResult {
	if f.onStart != nil {
		f.onStart(inst.Ticker, ctx)
	}
	f.mu.Lock()
	f.seen = append(f.seen, inst.Ticker)
	c, ok := f.calls[inst.Ticker]
	f.mu.Unlock()
	if !ok {
		c = call{signal: model.SignalHold, confidence: 50}
	}
	return makeResult(inst.Ticker, c)
}

func (f *fakeAnalyzer) symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func makeResult(symbol string, c call) *model.PipelineResult {
	res := &model.PipelineResult{Symbol: symbol, Name: symbol, Quote: &model.LiveQuote{Symbol: symbol, Price: 100}}
	if c.abort {
		res.StageReached = model.StagePrice
		res.Outcomes = []model.StageOutcome{{Stage: model.StagePrice, Status: model.StatusAborted, Reason: "instrument aborted: data unavailable"}}
		return res
	}
	res.StageReached = model.StageRecommendation
	res.Success = true
	res.Risk = &model.RiskLevels{StopLoss: 96, TakeProfit1: 106, TakeProfit2: 110, RiskRewardRatio1: 1.5}
	res.Recommendation = &model.Recommendation{Symbol: symbol, Signal: c.signal, Confidence: c.confidence, Reasoning: "r"}
	return res
}

type memRecorder struct {
	mu      sync.Mutex
	results []string
	cycles  []*model.BatchSummary
}

func (m *memRecorder) RecordResult(_ context.Context, res *model.PipelineResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res.Symbol)
	return nil
}

func (m *memRecorder) RecordCycle(_ context.Context, s *model.BatchSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, s)
	return nil
}

func (m *memRecorder) Close() error { return nil }

type memNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (m *memNotifier) Send(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func instruments(symbols ...string) []model.Instrument {
	out := make([]model.Instrument, len(symbols))
	for i, s := range symbols {
		out[i] = model.Instrument{Ticker: s, Name: s}
	}
	return out
}

func symbolsOf(entries []model.SummaryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Symbol
	}
	return out
}

func newTestScheduler(a Analyzer, insts []model.Instrument, rec *memRecorder, n *memNotifier, cfg Config) *Scheduler {
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 70
	}
	var nt notifier.Notifier
	if n != nil {
		nt = n
	}
	id := 0
	return New(a, insts, rec, nt, cfg, zerolog.Nop(),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithIDs(func() string { id++; return fmt.Sprintf("cycle-%d", id) }))
}

func TestAggregateOrdersByConfidenceThenCompletion(t *testing.T) {
	results := []*model.PipelineResult{
		makeResult("A", call{signal: model.SignalBuy, confidence: 70}),
		makeResult("B", call{signal: model.SignalBuy, confidence: 85}),
		makeResult("X", call{abort: true}),
		makeResult("C", call{signal: model.SignalBuy, confidence: 70}),
		makeResult("D", call{signal: model.SignalSell, confidence: 60}),
	}
	s := Aggregate("id", 6, results, 70)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 4, s.Succeeded)
	assert.Equal(t, 5, s.Processed())
	assert.Equal(t, map[model.Signal]int{model.SignalBuy: 3, model.SignalSell: 1, model.SignalHold: 0}, s.Counts)
	assert.Equal(t, []string{"B", "A", "C"}, symbolsOf(s.BySignal[model.SignalBuy]))
	assert.True(t, s.BySignal[model.SignalBuy][0].Actionable)
	assert.False(t, s.BySignal[model.SignalSell][0].Actionable)
	require.Len(t, s.Skipped, 1)
	assert.Equal(t, "X", s.Skipped[0].Symbol)
	assert.Equal(t, model.StagePrice, s.Skipped[0].Stage)
	assert.Contains(t, s.Skipped[0].Reason, "data unavailable")
}

func TestRunCycleIsolatesAbortedInstruments(t *testing.T) {
	a := &fakeAnalyzer{calls: map[string]call{
		"AAPL": {signal: model.SignalBuy, confidence: 82},
		"BAD":  {abort: true},
		"MSFT": {signal: model.SignalHold, confidence: 60},
	}}
	rec, n := &memRecorder{}, &memNotifier{}
	s := newTestScheduler(a, instruments("AAPL", "BAD", "MSFT"), rec, n, Config{})

	summary := s.RunCycle(context.Background())
	s.Flush()

	assert.Equal(t, []string{"AAPL", "BAD", "MSFT"}, a.symbols())
	assert.Equal(t, "cycle-1", summary.CycleID)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.False(t, summary.Cancelled)
	require.Len(t, summary.Skipped, 1)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	assert.ElementsMatch(t, []string{"AAPL", "BAD", "MSFT"}, rec.results)
	require.Len(t, rec.cycles, 1)
	assert.Same(t, summary, s.LatestSummary())

	require.Len(t, n.texts, 2, "one actionable alert and the summary")
	assert.Contains(t, n.texts[0], "BUY AAPL")
	assert.Contains(t, n.texts[1], "Portfolio summary")

	res, ok := s.Result("BAD")
	require.True(t, ok)
	assert.False(t, res.Success)
}

func TestRunCycleStopsOnCancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAnalyzer{onStart: func(string, context.Context) { cancel() }}
	s := newTestScheduler(a, instruments("A", "B", "C"), &memRecorder{}, nil, Config{InstrumentDelay: time.Hour})

	done := make(chan *model.BatchSummary)
	go func() { done <- s.RunCycle(ctx) }()

	select {
	case summary := <-done:
		assert.True(t, summary.Cancelled)
		assert.Equal(t, 1, summary.Processed())
		assert.Equal(t, 3, summary.Total)
		assert.Equal(t, []string{"A"}, a.symbols())
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not stop after cancellation")
	}
	s.Flush()
}

func TestInFlightInstrumentIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var innerErr error
	a := &fakeAnalyzer{onStart: func(_ string, ictx context.Context) {
		cancel()
		innerErr = ictx.Err()
	}}
	s := newTestScheduler(a, instruments("A", "B"), &memRecorder{}, nil, Config{})

	summary := s.RunCycle(ctx)
	s.Flush()

	assert.NoError(t, innerErr)
	assert.Equal(t, 1, summary.Succeeded)
	assert.True(t, summary.Cancelled)
}

func TestRunCycleWorkerPool(t *testing.T) {
	calls := map[string]call{}
	var syms []string
	for i := 0; i < 8; i++ {
		sym := fmt.Sprintf("S%d", i)
		syms = append(syms, sym)
		calls[sym] = call{signal: model.SignalBuy, confidence: float64(50 + i*5)}
	}
	a := &fakeAnalyzer{calls: calls}
	rec := &memRecorder{}
	s := newTestScheduler(a, instruments(syms...), rec, &memNotifier{}, Config{Workers: 3})

	summary := s.RunCycle(context.Background())
	s.Flush()

	assert.Equal(t, 8, summary.Succeeded)
	assert.Len(t, rec.results, 8)
	buys := summary.BySignal[model.SignalBuy]
	require.Len(t, buys, 8)
	assert.Equal(t, "S7", buys[0].Symbol)
	for i := 1; i < len(buys); i++ {
		assert.GreaterOrEqual(t, buys[i-1].Confidence, buys[i].Confidence)
	}
}

func TestHandleCommand(t *testing.T) {
	a := &fakeAnalyzer{calls: map[string]call{"AAPL": {signal: model.SignalBuy, confidence: 90}}}
	n := &memNotifier{}
	s := newTestScheduler(a, instruments("AAPL"), &memRecorder{}, n, Config{})
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/help"), "/analyze TICKER")
	assert.Equal(t, "No cycle has finished yet.", s.HandleCommand(ctx, "/summary"))
	assert.Contains(t, s.HandleCommand(ctx, "/status@SentinelBot"), "Instruments: 1")
	assert.Equal(t, "Usage: /analyze TICKER", s.HandleCommand(ctx, "/analyze"))

	reply := s.HandleCommand(ctx, "/analyze aapl")
	assert.Contains(t, reply, "BUY AAPL")
	assert.Empty(t, n.texts, "on-demand analysis replies instead of alerting")

	s.RunCycle(ctx)
	s.Flush()
	assert.Contains(t, s.HandleCommand(ctx, "/summary"), "Analyzed 1/1")
	assert.Contains(t, s.HandleCommand(ctx, "/status"), "Cycles completed: 1")
}

func TestStartRunsOnStartAndStops(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestScheduler(a, instruments("A"), &memRecorder{}, nil, Config{CronSpec: "@every 1h", RunOnStart: true})

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.LatestSummary() != nil }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, s.Status().NextRun.IsZero())
	s.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(&fakeAnalyzer{}, nil, &memRecorder{}, nil, Config{CronSpec: "not a schedule"})
	assert.Error(t, s.Start(context.Background()))
}
