package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PortfolioSentinel/internal/model"
)

// Recorder exposes pipeline and scheduler metrics. A nil *Recorder is a no-op.
type Recorder struct {
	stageOutcomes      *prometheus.CounterVec
	instruments        *prometheus.CounterVec
	instrumentDuration prometheus.Histogram
	cycleDuration      prometheus.Histogram
	cycleSignals       *prometheus.GaugeVec
	lastCycle          prometheus.Gauge
	cacheRequests      *prometheus.CounterVec
	upstreamRequests   *prometheus.CounterVec
	notifications      *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stageOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_stage_outcomes_total",
				Help: "Pipeline stage resolutions by stage and status",
			},
			[]string{"stage", "status"},
		),
		instruments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_instruments_total",
				Help: "Instruments processed by outcome",
			},
			[]string{"outcome"},
		),
		instrumentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_instrument_duration_seconds",
			Help:    "Wall time of one instrument's pipeline run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_cycle_duration_seconds",
			Help:    "Wall time of one portfolio cycle",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
		cycleSignals: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_cycle_signals",
				Help: "Signal counts of the last completed cycle",
			},
			[]string{"signal"},
		),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished",
		}),
		cacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_cache_requests_total",
				Help: "Market data cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		upstreamRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_upstream_requests_total",
				Help: "Calls to external providers by source, operation and result",
			},
			[]string{"source", "operation", "result"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_notifications_total",
				Help: "Notifications sent by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveStage counts a stage resolution.
func (r *Recorder) ObserveStage(stage model.Stage, status model.StageStatus) {
	if r == nil {
		return
	}
	r.stageOutcomes.WithLabelValues(stage.String(), string(status)).Inc()
}

// ObserveInstrument counts a finished instrument run.
func (r *Recorder) ObserveInstrument(success bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "aborted"
	if success {
		outcome = "success"
	}
	r.instruments.WithLabelValues(outcome).Inc()
	r.instrumentDuration.Observe(d.Seconds())
}

// ObserveCycle records a completed cycle.
func (r *Recorder) ObserveCycle(s *model.BatchSummary) {
	if r == nil || s == nil {
		return
	}
	r.cycleDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	for _, sig := range model.Signals {
		r.cycleSignals.WithLabelValues(string(sig)).Set(float64(s.Counts[sig]))
	}
	r.lastCycle.Set(float64(s.FinishedAt.Unix()))
}

// ObserveCache counts a cache lookup.
func (r *Recorder) ObserveCache(kind string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheRequests.WithLabelValues(kind, result).Inc()
}

// ObserveUpstream counts a call to an external provider.
func (r *Recorder) ObserveUpstream(source, operation string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.upstreamRequests.WithLabelValues(source, operation, result).Inc()
}

// ObserveNotification counts a notification attempt.
func (r *Recorder) ObserveNotification(err error) {
	if r == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	r.notifications.WithLabelValues(result).Inc()
}
