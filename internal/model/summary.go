package model

import "time"

// SummaryEntry is one successful instrument in a batch summary.
type SummaryEntry struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name,omitempty"`
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2"`
	RiskReward  float64 `json:"risk_reward"`
	Actionable  bool    `json:"actionable"`
	Degraded    bool    `json:"degraded"`
}

// SkippedInstrument is an instrument whose run aborted.
type SkippedInstrument struct {
	Symbol string `json:"symbol"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// BatchSummary aggregates one cycle over the portfolio.
type BatchSummary struct {
	CycleID    string                    `json:"cycle_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Total      int                       `json:"total"`
	Succeeded  int                       `json:"succeeded"`
	Counts     map[Signal]int            `json:"counts"`
	BySignal   map[Signal][]SummaryEntry `json:"by_signal"`
	Skipped    []SkippedInstrument       `json:"skipped,omitempty"`
	Cancelled  bool                      `json:"cancelled"`
}

// Processed returns how many instruments reached a final state in the cycle.
func (b *BatchSummary) Processed() int {
	return b.Succeeded + len(b.Skipped)
}
