package recorder

import (
	"context"

	"PortfolioSentinel/internal/model"
)

// NoopRecorder is used when no persistence is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordResult(context.Context, *model.PipelineResult) error { return nil }
func (n *NoopRecorder) RecordCycle(context.Context, *model.BatchSummary) error    { return nil }
func (n *NoopRecorder) Close() error                                              { return nil }
