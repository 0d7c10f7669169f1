package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/analysis"
	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/risk"
	"PortfolioSentinel/internal/strategy"
)

// MarketData serves quotes and price history.
type MarketData interface {
	LiveQuote(ctx context.Context, symbol string) (*model.LiveQuote, error)
	History(ctx context.Context, symbol, period, interval string) (*model.HistoricalSeries, error)
}

// Analyst performs the generative analyses.
type Analyst interface {
	Technical(ctx context.Context, symbol string, series *model.HistoricalSeries) (*model.TechnicalAnalysis, error)
	Sentiment(ctx context.Context, symbol, name string) (*model.Sentiment, error)
	Recommend(ctx context.Context, in analysis.RecommendationInput) (*model.Recommendation, error)
}

// RiskCalculator derives risk levels. It must not fail.
type RiskCalculator interface {
	Calculate(symbol string, price float64, series *model.HistoricalSeries, hints model.Levels) model.RiskLevels
}

// Config holds the orchestrator settings.
type Config struct {
	HistoryPeriod       string
	HistoryInterval     string
	MinRiskReward       float64
	ConfidenceThreshold float64
}

// Orchestrator runs the five-stage pipeline for one instrument at a time.
// Stages 1 (price) and 5 (recommendation) are hard stops; stages 2 to 4
// degrade to local fallbacks and never stop the run.
type Orchestrator struct {
	market  MarketData
	analyst Analyst
	risk    RiskCalculator
	cfg     Config
	metrics *metrics.Recorder
	now     func() time.Time
	logger  zerolog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock sets the clock used for timestamps and stage durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(market MarketData, analyst Analyst, rc RiskCalculator, cfg Config, logger zerolog.Logger, opts ...Option) *Orchestrator {
	if cfg.HistoryPeriod == "" {
		cfg.HistoryPeriod = "1y"
	}
	if cfg.HistoryInterval == "" {
		cfg.HistoryInterval = "1d"
	}
	o := &Orchestrator{
		market:  market,
		analyst: analyst,
		risk:    rc,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type technicalPayload struct {
	report *model.TechnicalReport
	series *model.HistoricalSeries
}

// Analyze runs every stage for inst and returns the finished result. It never
// panics; a panicking stage aborts the instrument.
func (o *Orchestrator) Analyze(ctx context.Context, inst model.Instrument) (result *model.PipelineResult) {
	result = &model.PipelineResult{
		Symbol:    inst.Ticker,
		Name:      inst.Name,
		Market:    inst.Market,
		StartedAt: o.now(),
	}
	r := &run{
		result:  result,
		metrics: o.metrics,
		logger:  o.logger.With().Str("symbol", inst.Ticker).Logger(),
		now:     o.now,
	}

	defer func() {
		if p := recover(); p != nil {
			stage := result.StageReached + 1
			if stage > model.StageRecommendation {
				stage = model.StageRecommendation
			}
			record(r, stage, o.now(), aborted[struct{}](fmt.Errorf("%w: panic: %v", model.ErrInstrumentAborted, p)))
			result.Success = false
			result.Recommendation = nil
		}
		result.FinishedAt = o.now()
		o.metrics.ObserveInstrument(result.Success, result.FinishedAt.Sub(result.StartedAt))
	}()

	r.logger.Info().Msg("analyzing instrument")

	started := o.now()
	quote := record(r, model.StagePrice, started, o.priceStage(ctx, inst))
	if quote == nil {
		return result
	}
	result.Quote = quote

	started = o.now()
	tech := record(r, model.StageTechnical, started, o.technicalStage(ctx, inst, quote))
	result.Technical = tech.report

	started = o.now()
	result.Sentiment = record(r, model.StageSentiment, started, o.sentimentStage(ctx, inst))

	started = o.now()
	result.Risk = record(r, model.StageRisk, started, o.riskStage(inst, quote, tech))

	started = o.now()
	rec := record(r, model.StageRecommendation, started, o.recommendationStage(ctx, inst, result))
	if rec == nil {
		return result
	}
	result.Recommendation = rec
	result.Success = true
	r.logger.Info().Str("signal", string(rec.Signal)).Float64("confidence", rec.Confidence).
		Bool("degraded", result.Degraded()).Msg("instrument complete")
	return result
}

func (o *Orchestrator) priceStage(ctx context.Context, inst model.Instrument) stageResult[*model.LiveQuote] {
	q, err := o.market.LiveQuote(ctx, inst.Ticker)
	if err != nil {
		return aborted[*model.LiveQuote](fmt.Errorf("%w: %w", model.ErrInstrumentAborted, err))
	}
	if q == nil {
		return aborted[*model.LiveQuote](fmt.Errorf("%w: %w: no quote", model.ErrInstrumentAborted, model.ErrDataUnavailable))
	}
	if !q.Usable() {
		return aborted[*model.LiveQuote](fmt.Errorf("%w: %w: price %v", model.ErrInstrumentAborted, model.ErrDataUnavailable, q.Price))
	}
	return ok(q)
}

func (o *Orchestrator) technicalStage(ctx context.Context, inst model.Instrument, quote *model.LiveQuote) stageResult[technicalPayload] {
	series, err := o.market.History(ctx, inst.Ticker, o.cfg.HistoryPeriod, o.cfg.HistoryInterval)
	if err != nil {
		return degraded(technicalPayload{report: localReport(nil, quote.Price)}, err)
	}
	ta, err := o.analyst.Technical(ctx, inst.Ticker, series)
	if err != nil {
		return degraded(technicalPayload{report: localReport(series, quote.Price), series: series}, err)
	}
	return ok(technicalPayload{
		report: &model.TechnicalReport{
			Source:   model.TechnicalGenerative,
			Analysis: ta,
			Local:    strategy.Evaluate(series, quote.Price),
		},
		series: series,
	})
}

func localReport(series *model.HistoricalSeries, price float64) *model.TechnicalReport {
	return &model.TechnicalReport{Source: model.TechnicalLocal, Local: strategy.Evaluate(series, price)}
}

func (o *Orchestrator) sentimentStage(ctx context.Context, inst model.Instrument) stageResult[*model.Sentiment] {
	s, err := o.analyst.Sentiment(ctx, inst.Ticker, inst.DisplayName())
	if err != nil {
		return degraded(model.NeutralSentiment("Unable to analyze sentiment"), err)
	}
	return ok(s)
}

func (o *Orchestrator) riskStage(inst model.Instrument, quote *model.LiveQuote, tech technicalPayload) stageResult[*model.RiskLevels] {
	levels := o.risk.Calculate(inst.Ticker, quote.Price, tech.series, tech.report.Hints())
	if levels.IsDefaultFallback {
		return degraded(&levels, fmt.Errorf("%w: default risk levels used", model.ErrComputationDegraded))
	}
	return ok(&levels)
}

func (o *Orchestrator) recommendationStage(ctx context.Context, inst model.Instrument, result *model.PipelineResult) stageResult[*model.Recommendation] {
	rec, err := o.analyst.Recommend(ctx, analysis.RecommendationInput{
		Instrument:          inst,
		Quote:               result.Quote,
		Technical:           result.Technical,
		Sentiment:           result.Sentiment,
		Risk:                result.Risk,
		MinRiskReward:       o.cfg.MinRiskReward,
		ConfidenceThreshold: o.cfg.ConfidenceThreshold,
	})
	if err != nil {
		return aborted[*model.Recommendation](fmt.Errorf("%w: %w", model.ErrInstrumentAborted, err))
	}
	if rec.Signal == model.SignalBuy && result.Risk != nil && !risk.MeetsMinRiskReward(*result.Risk, o.cfg.MinRiskReward) {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("risk/reward %.2f is below the %.2f minimum", result.Risk.RiskRewardRatio1, o.cfg.MinRiskReward))
	}
	return ok(rec)
}
