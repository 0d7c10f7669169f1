package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PortfolioSentinel/internal/model"
)

// Recorder persists pipeline results and cycle summaries for later analysis.
type Recorder interface {
	RecordResult(ctx context.Context, res *model.PipelineResult) error
	RecordCycle(ctx context.Context, summary *model.BatchSummary) error
	Close() error
}

// HistoryReader serves stored successful recommendations back.
type HistoryReader interface {
	// Latest returns the most recent successful result for symbol.
	Latest(ctx context.Context, symbol string) (*model.PipelineResult, bool, error)
	// History returns successful results for symbol finished at or after since, oldest first.
	History(ctx context.Context, symbol string, since time.Time) ([]*model.PipelineResult, error)
}

var (
	_ Recorder      = Multi(nil)
	_ Recorder      = (*NoopRecorder)(nil)
	_ Recorder      = (*JSONFileRecorder)(nil)
	_ Recorder      = (*SQLiteRecorder)(nil)
	_ Recorder      = (*PostgresRecorder)(nil)
	_ HistoryReader = (*SQLiteRecorder)(nil)
	_ HistoryReader = (*PostgresRecorder)(nil)
)

// resultRow is the flattened form of a PipelineResult stored by the SQL recorders.
type resultRow struct {
	Symbol          string
	Name            string
	Success         bool
	StageReached    int
	Signal          string
	Confidence      float64
	Price           float64
	StopLoss        float64
	TakeProfit1     float64
	TakeProfit2     float64
	RiskReward1     float64
	RiskReward2     float64
	RiskFallback    bool
	TechnicalSource string
	SentimentScore  float64
	Degraded        bool
	AbortReason     string
	Payload         []byte
	FinishedAt      int64
}

func newResultRow(res *model.PipelineResult) (resultRow, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return resultRow{}, fmt.Errorf("marshal result %s: %w", res.Symbol, err)
	}
	row := resultRow{
		Symbol:       res.Symbol,
		Name:         res.Name,
		Success:      res.Success,
		StageReached: int(res.StageReached),
		Degraded:     res.Degraded(),
		AbortReason:  res.AbortReason(),
		Payload:      payload,
		FinishedAt:   res.FinishedAt.Unix(),
	}
	if res.Quote != nil {
		row.Price = res.Quote.Price
	}
	if r := res.Risk; r != nil {
		row.StopLoss, row.TakeProfit1, row.TakeProfit2 = r.StopLoss, r.TakeProfit1, r.TakeProfit2
		row.RiskReward1, row.RiskReward2 = r.RiskRewardRatio1, r.RiskRewardRatio2
		row.RiskFallback = r.IsDefaultFallback
	}
	if res.Technical != nil {
		row.TechnicalSource = string(res.Technical.Source)
	}
	if res.Sentiment != nil {
		row.SentimentScore = res.Sentiment.Score
	}
	if rec := res.Recommendation; rec != nil {
		row.Signal = string(rec.Signal)
		row.Confidence = rec.Confidence
	}
	return row, nil
}

// Multi fans every record out to all of its recorders.
type Multi []Recorder

func (m Multi) RecordResult(ctx context.Context, res *model.PipelineResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordResult(ctx, res))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordCycle(ctx context.Context, summary *model.BatchSummary) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordCycle(ctx, summary))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// decodePayloads turns stored JSON payloads back into results.
func decodePayloads(payloads [][]byte) ([]*model.PipelineResult, error) {
	out := make([]*model.PipelineResult, 0, len(payloads))
	for _, p := range payloads {
		var res model.PipelineResult
		if err := json.Unmarshal(p, &res); err != nil {
			return nil, fmt.Errorf("decode stored result: %w", err)
		}
		out = append(out, &res)
	}
	return out, nil
}
