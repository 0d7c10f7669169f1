package model

import (
	"fmt"
	"time"
)

// Stage identifies a step of the per-instrument pipeline.
type Stage int

const (
	StagePrice Stage = iota + 1
	StageTechnical
	StageSentiment
	StageRisk
	StageRecommendation
)

func (s Stage) String() string {
	switch s {
	case StagePrice:
		return "price"
	case StageTechnical:
		return "technical"
	case StageSentiment:
		return "sentiment"
	case StageRisk:
		return "risk"
	case StageRecommendation:
		return "recommendation"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageStatus is how a stage resolved.
type StageStatus string

const (
	StatusOK       StageStatus = "ok"
	StatusDegraded StageStatus = "degraded"
	StatusAborted  StageStatus = "aborted"
)

// StageOutcome records the resolution of one stage.
type StageOutcome struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StageError is a warning or failure attached to a result.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %s", int(e.Stage), e.Stage, e.Message)
}

// PipelineResult is the outcome of one instrument's run through the pipeline.
type PipelineResult struct {
	Symbol         string           `json:"symbol"`
	Name           string           `json:"name,omitempty"`
	Market         string           `json:"market,omitempty"`
	StageReached   Stage            `json:"stage_reached"`
	Success        bool             `json:"success"`
	Quote          *LiveQuote       `json:"quote,omitempty"`
	Technical      *TechnicalReport `json:"technical,omitempty"`
	Sentiment      *Sentiment       `json:"sentiment,omitempty"`
	Risk           *RiskLevels      `json:"risk,omitempty"`
	Recommendation *Recommendation  `json:"recommendation,omitempty"`
	Outcomes       []StageOutcome   `json:"outcomes"`
	Errors         []StageError     `json:"errors,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// Outcome returns the recorded outcome for stage, if any.
func (r *PipelineResult) Outcome(stage Stage) (StageOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Degraded reports whether any stage used its fallback path.
func (r *PipelineResult) Degraded() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusDegraded {
			return true
		}
	}
	return false
}

// AbortReason returns the message of the aborting stage, if the run aborted.
func (r *PipelineResult) AbortReason() string {
	for _, o := range r.Outcomes {
		if o.Status == StatusAborted {
			return o.Reason
		}
	}
	return ""
}
