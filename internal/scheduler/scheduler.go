package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/notifier"
	"PortfolioSentinel/internal/recorder"
)

// Analyzer runs the full pipeline for one instrument. It must not panic and
// always returns a result.
type Analyzer interface {
	Analyze(ctx context.Context, inst model.Instrument) *model.PipelineResult
}

// Config holds the cycle settings.
type Config struct {
	CronSpec            string
	InstrumentDelay     time.Duration
	InstrumentTimeout   time.Duration
	Workers             int
	ConfidenceThreshold float64
	RunOnStart          bool
}

// Scheduler runs analysis cycles over the instrument list.
type Scheduler struct {
	analyzer    Analyzer
	instruments []model.Instrument
	recorder    recorder.Recorder
	notifier    notifier.Notifier
	metrics     *metrics.Recorder
	cfg         Config
	logger      zerolog.Logger
	now         func() time.Time
	newID       func() string

	cron    *cron.Cron
	entry   cron.EntryID
	cycleMu sync.Mutex
	bg      sync.WaitGroup
	pending sync.WaitGroup

	mu      sync.RWMutex
	latest  *model.BatchSummary
	results map[string]*model.PipelineResult
	running bool
	cycles  int
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock sets the clock used for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithIDs sets the cycle id generator.
func WithIDs(newID func() string) Option {
	return func(s *Scheduler) { s.newID = newID }
}

// New creates a Scheduler. A nil recorder or notifier disables that output.
func New(analyzer Analyzer, instruments []model.Instrument, rec recorder.Recorder, n notifier.Notifier, cfg Config, logger zerolog.Logger, opts ...Option) *Scheduler {
	if cfg.CronSpec == "" {
		cfg.CronSpec = "@every 60s"
	}
	if cfg.InstrumentTimeout <= 0 {
		cfg.InstrumentTimeout = 3 * time.Minute
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	s := &Scheduler{
		analyzer:    analyzer,
		instruments: instruments,
		recorder:    rec,
		notifier:    n,
		cfg:         cfg,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		now:         time.Now,
		newID:       uuid.NewString,
		results:     make(map[string]*model.PipelineResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the cycle job and starts the cron scheduler. Jobs run under
// ctx; cancelling it stops the in-flight cycle after its current instrument.
func (s *Scheduler) Start(ctx context.Context) error {
	cronLogger := s.logger.With().Str("component", "cron").Logger()
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&cronLogger))),
	)
	id, err := s.cron.AddFunc(s.cfg.CronSpec, func() { s.runScheduled(ctx) })
	if err != nil {
		return fmt.Errorf("register cycle job %q: %w", s.cfg.CronSpec, err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info().Str("schedule", s.cfg.CronSpec).Int("instruments", len(s.instruments)).Msg("scheduler started")

	if s.cfg.RunOnStart {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.runScheduled(ctx)
		}()
	}
	return nil
}

// Stop stops the cron scheduler and waits for the in-flight cycle and any
// pending record writes.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.bg.Wait()
	s.Flush()
	s.logger.Info().Msg("scheduler stopped")
}

// Flush waits for fire-and-forget record writes.
func (s *Scheduler) Flush() { s.pending.Wait() }

func (s *Scheduler) runScheduled(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		s.logger.Warn().Msg("previous cycle still running, skipping")
		return
	}
	defer s.cycleMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.RunCycle(ctx)
}

// RunCycle analyzes every instrument once and returns the cycle summary.
// Cancellation is checked before each instrument and during the delay
// between instruments; an instrument already started runs to completion,
// bounded by the instrument timeout.
func (s *Scheduler) RunCycle(ctx context.Context) *model.BatchSummary {
	cycleID := s.newID()
	started := s.now()
	log := s.logger.With().Str("cycle_id", cycleID).Logger()
	log.Info().Int("instruments", len(s.instruments)).Int("workers", s.cfg.Workers).Msg("cycle started")

	s.setRunning(true)
	defer s.setRunning(false)

	var results []*model.PipelineResult
	var cancelled bool
	if s.cfg.Workers > 1 {
		results, cancelled = s.runPool(ctx)
	} else {
		results, cancelled = s.runSequential(ctx)
	}

	summary := Aggregate(cycleID, len(s.instruments), results, s.cfg.ConfidenceThreshold)
	summary.StartedAt = started
	summary.FinishedAt = s.now()
	summary.Cancelled = cancelled

	s.mu.Lock()
	s.latest = summary
	s.cycles++
	s.mu.Unlock()

	s.metrics.ObserveCycle(summary)
	s.recordAsync(ctx, func(rctx context.Context) error { return s.recorder.RecordCycle(rctx, summary) })
	s.notify(ctx, notifier.FormatSummary(summary))

	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("skipped", len(summary.Skipped)).
		Int("buy", summary.Counts[model.SignalBuy]).
		Int("sell", summary.Counts[model.SignalSell]).
		Int("hold", summary.Counts[model.SignalHold]).
		Bool("cancelled", cancelled).
		Dur("took", summary.FinishedAt.Sub(started)).
		Msg("cycle finished")
	return summary
}

func (s *Scheduler) runSequential(ctx context.Context) ([]*model.PipelineResult, bool) {
	results := make([]*model.PipelineResult, 0, len(s.instruments))
	for i, inst := range s.instruments {
		if i > 0 && !s.pause(ctx) {
			return results, true
		}
		if ctx.Err() != nil {
			return results, true
		}
		res := s.AnalyzeOne(ctx, inst)
		s.alert(ctx, res)
		results = append(results, res)
	}
	return results, false
}

// runPool analyzes instruments on a fixed number of workers. Results are
// merged as each instrument resolves.
func (s *Scheduler) runPool(ctx context.Context) ([]*model.PipelineResult, bool) {
	jobs := make(chan model.Instrument)
	out := make(chan *model.PipelineResult)
	dispatchCancelled := make(chan bool, 1)

	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range jobs {
				res := s.AnalyzeOne(ctx, inst)
				s.alert(ctx, res)
				out <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, inst := range s.instruments {
			if i > 0 && !s.pause(ctx) {
				dispatchCancelled <- true
				return
			}
			select {
			case <-ctx.Done():
				dispatchCancelled <- true
				return
			case jobs <- inst:
			}
		}
		dispatchCancelled <- false
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]*model.PipelineResult, 0, len(s.instruments))
	for res := range out {
		results = append(results, res)
	}
	return results, <-dispatchCancelled
}

// pause waits the inter-instrument delay. It reports false if ctx was
// cancelled first.
func (s *Scheduler) pause(ctx context.Context) bool {
	if s.cfg.InstrumentDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.InstrumentDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// AnalyzeOne runs one instrument detached from ctx's cancellation and
// publishes the result.
func (s *Scheduler) AnalyzeOne(ctx context.Context, inst model.Instrument) *model.PipelineResult {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.InstrumentTimeout)
	defer cancel()

	res := s.analyzer.Analyze(ictx, inst)

	s.mu.Lock()
	s.results[res.Symbol] = res
	s.mu.Unlock()

	s.recordAsync(ctx, func(rctx context.Context) error { return s.recorder.RecordResult(rctx, res) })
	return res
}

// alert pushes BUY and SELL calls at or above the confidence threshold.
func (s *Scheduler) alert(ctx context.Context, res *model.PipelineResult) {
	if res.Recommendation.Actionable(s.cfg.ConfidenceThreshold) {
		s.notify(ctx, notifier.FormatRecommendation(res))
	}
}

func (s *Scheduler) recordAsync(ctx context.Context, write func(context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := write(rctx); err != nil {
			s.logger.Error().Err(err).Msg("record history")
		}
	}()
}

func (s *Scheduler) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := s.notifier.Send(nctx, text); err != nil {
		s.logger.Error().Err(err).Msg("send notification")
	}
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// LatestSummary returns the summary of the last finished cycle, or nil.
func (s *Scheduler) LatestSummary() *model.BatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Result returns the most recent result for ticker.
func (s *Scheduler) Result(ticker string) (*model.PipelineResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[ticker]
	return res, ok
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running     bool      `json:"running"`
	Instruments int       `json:"instruments"`
	Cycles      int       `json:"cycles"`
	LastCycle   time.Time `json:"last_cycle,omitempty"`
	NextRun     time.Time `json:"next_run,omitempty"`
}

// Status reports whether a cycle is running and when the next one is due.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	st := Status{Running: s.running, Instruments: len(s.instruments), Cycles: s.cycles}
	if s.latest != nil {
		st.LastCycle = s.latest.FinishedAt
	}
	s.mu.RUnlock()
	if s.cron != nil {
		st.NextRun = s.cron.Entry(s.entry).Next
	}
	return st
}
