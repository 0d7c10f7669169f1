package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
)

// stageResult is the explicit outcome of one stage: Ok(value),
// Degraded(fallback value, reason) or Aborted(reason).
type stageResult[T any] struct {
	value  T
	status model.StageStatus
	err    error
}

func ok[T any](v T) stageResult[T] {
	return stageResult[T]{value: v, status: model.StatusOK}
}

func degraded[T any](v T, reason error) stageResult[T] {
	return stageResult[T]{value: v, status: model.StatusDegraded, err: reason}
}

func aborted[T any](reason error) stageResult[T] {
	return stageResult[T]{status: model.StatusAborted, err: reason}
}

// run tracks one instrument's progress through the stages.
type run struct {
	result  *model.PipelineResult
	metrics *metrics.Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

// record appends the stage outcome to the result and returns its value.
func record[T any](r *run, stage model.Stage, started time.Time, sr stageResult[T]) T {
	outcome := model.StageOutcome{
		Stage:    stage,
		Status:   sr.status,
		Duration: r.now().Sub(started),
	}
	if sr.err != nil {
		outcome.Reason = sr.err.Error()
		r.result.Errors = append(r.result.Errors, model.StageError{
			Stage:   stage,
			Kind:    model.ErrorKind(sr.err),
			Message: sr.err.Error(),
		})
	}
	r.result.Outcomes = append(r.result.Outcomes, outcome)
	r.result.StageReached = stage
	r.metrics.ObserveStage(stage, sr.status)

	switch sr.status {
	case model.StatusOK:
		r.logger.Debug().Str("stage", stage.String()).Dur("took", outcome.Duration).Msg("stage ok")
	case model.StatusDegraded:
		r.logger.Warn().Str("stage", stage.String()).Err(sr.err).Msg("stage degraded, using fallback")
	case model.StatusAborted:
		r.logger.Error().Str("stage", stage.String()).Err(sr.err).Msg("stage aborted instrument")
	}
	return sr.value
}
