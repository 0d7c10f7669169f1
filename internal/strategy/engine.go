package strategy

import (
	"PortfolioSentinel/internal/calculator"
	"PortfolioSentinel/internal/model"
)

// Score thresholds mapping the weighted total onto a technical bias.
const (
	bullishScore = 0.5
	bearishScore = -0.5
)

// mapSignal maps a total score to an overall technical bias.
func mapSignal(total float64) model.OverallSignal {
	switch {
	case total >= bullishScore:
		return model.Bullish
	case total <= bearishScore:
		return model.Bearish
	default:
		return model.Neutral
	}
}

// Evaluate computes the local indicator set used when the generative technical
// analysis is unavailable: SMA50/SMA200, price above or below each, RSI(14)
// and a weighted trend bias. It works on any series, including an empty one.
func Evaluate(series *model.HistoricalSeries, price float64) *model.LocalIndicators {
	ind := &model.LocalIndicators{CurrentPrice: price, OverallSignal: model.Neutral}
	if series.Empty() {
		return ind
	}
	if price <= 0 {
		last, _ := series.Last()
		ind.CurrentPrice = last.Close
	}

	if sma, err := calculator.SeriesSMA(series, 50); err == nil {
		ind.SMA50 = sma
		above := ind.CurrentPrice > sma
		ind.AboveSMA50 = &above
	}
	if sma, err := calculator.SeriesSMA(series, 200); err == nil {
		ind.SMA200 = sma
		above := ind.CurrentPrice > sma
		ind.AboveSMA200 = &above
	}
	rsi, err := calculator.RSI(series, 14)
	if err != nil {
		rsi = 50
	}
	ind.RSI = rsi

	ind.Factors = []model.FactorScore{
		scoreMA50(ind.CurrentPrice, ind.SMA50),
		scoreMA200(ind.CurrentPrice, ind.SMA200),
		scoreCross(ind.SMA50, ind.SMA200),
		scoreRSI(rsi),
	}
	for _, f := range ind.Factors {
		ind.Score += f.Weighted
	}
	ind.OverallSignal = mapSignal(ind.Score)
	return ind
}
