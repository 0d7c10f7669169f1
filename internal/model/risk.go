package model

import "time"

// RiskLevels are the stop-loss and take-profit bounds for a position.
type RiskLevels struct {
	Symbol            string    `json:"symbol"`
	CurrentPrice      float64   `json:"current_price"`
	StopLoss          float64   `json:"stop_loss"`
	TakeProfit1       float64   `json:"take_profit_1"`
	TakeProfit2       float64   `json:"take_profit_2"`
	StopLossPercent   float64   `json:"stop_loss_percent"`
	TP1Percent        float64   `json:"take_profit_1_percent"`
	TP2Percent        float64   `json:"take_profit_2_percent"`
	RiskRewardRatio1  float64   `json:"risk_reward_ratio_1"`
	RiskRewardRatio2  float64   `json:"risk_reward_ratio_2"`
	Volatility        float64   `json:"volatility"` // fraction, 0.02 = 2%
	ATR               float64   `json:"atr"`
	ComputedAt        time.Time `json:"computed_at"`
	IsDefaultFallback bool      `json:"is_default_fallback"`
}
