package calculator

import (
	"math"

	"PortfolioSentinel/internal/model"
)

const (
	DefaultVolatilityPeriod = 20
	DefaultATRPeriod        = 14
	// FallbackVolatility is returned when returns cannot be measured.
	FallbackVolatility = 0.02
	fallbackRangeBars  = 14
)

// Volatility is the sample standard deviation of close-to-close percentage
// returns over the trailing period returns. It never fails: when the value
// cannot be computed it returns FallbackVolatility and fellBack=true.
func Volatility(series *model.HistoricalSeries, period int) (value float64, fellBack bool) {
	if period <= 0 {
		period = DefaultVolatilityPeriod
	}
	closes := series.Closes()
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		r := (closes[i] - closes[i-1]) / closes[i-1]
		if isFinite(r) {
			returns = append(returns, r)
		}
	}
	if len(returns) > period {
		returns = returns[len(returns)-period:]
	}
	if len(returns) < 2 {
		return FallbackVolatility, true
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if !isFinite(std) {
		return FallbackVolatility, true
	}
	return std, false
}

// ATR is the mean true range over the trailing period bars. When that is not
// usable it falls back to the mean high-low range of the last 14 bars, then to
// 0. An empty series yields exactly 0. The result is never negative.
func ATR(series *model.HistoricalSeries, period int) (value float64, fellBack bool) {
	if series.Len() == 0 {
		return 0, true
	}
	if period <= 0 {
		period = DefaultATRPeriod
	}

	trs := TrueRanges(series)
	if len(trs) > period {
		trs = trs[len(trs)-period:]
	}
	sum := 0.0
	for _, tr := range trs {
		sum += tr
	}
	if atr := sum / float64(len(trs)); isFinite(atr) && atr >= 0 {
		return atr, false
	}

	if hl, err := MeanHighLowRange(series, fallbackRangeBars); err == nil && isFinite(hl) && hl >= 0 {
		return hl, true
	}
	return 0, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
