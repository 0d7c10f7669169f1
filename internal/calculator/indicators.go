package calculator

import (
	"errors"
	"fmt"

	"PortfolioSentinel/internal/model"
)

// NeutralRSI is reported when there are too few closes to measure momentum.
const NeutralRSI = 50.0

// ErrInsufficientData is returned when a window is longer than the input.
var ErrInsufficientData = errors.New("insufficient data")

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period %d must be positive", period)
	}
	return nil
}

// SMA averages the trailing period values.
func SMA(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period {
		return 0, fmt.Errorf("%w: sma(%d) over %d values", ErrInsufficientData, period, len(values))
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// SeriesSMA is the SMA of the series closes.
func SeriesSMA(series *model.HistoricalSeries, period int) (float64, error) {
	return SMA(series.Closes(), period)
}

// RSI is Wilder's relative strength index of the series closes. With fewer
// than period+1 closes it returns NeutralRSI.
func RSI(series *model.HistoricalSeries, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	closes := series.Closes()
	if len(closes) <= period {
		return NeutralRSI, nil
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := split(closes[i] - closes[i-1])
		gain += g
		loss += l
	}
	n := float64(period)
	gain, loss = gain/n, loss/n

	for i := period + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		gain = (gain*(n-1) + g) / n
		loss = (loss*(n-1) + l) / n
	}

	if loss == 0 {
		return 100, nil
	}
	return 100 - 100/(1+gain/loss), nil
}

// split separates a price change into its gain and loss parts.
func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
