package calculator

import (
	"errors"
	"math"

	"PortfolioSentinel/internal/model"
)

// TrueRanges returns the true range of every bar. The first bar has no previous
// close, so its true range is high-low.
func TrueRanges(series *model.HistoricalSeries) []float64 {
	n := series.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bar := series.At(i)
		tr := bar.High - bar.Low
		if i > 0 {
			prevClose := series.At(i - 1).Close
			tr = math.Max(tr, math.Abs(bar.High-prevClose))
			tr = math.Max(tr, math.Abs(bar.Low-prevClose))
		}
		out[i] = tr
	}
	return out
}

// MeanHighLowRange averages high-low over the trailing period bars.
func MeanHighLowRange(series *model.HistoricalSeries, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	tail := series.Tail(period)
	if tail.Len() == 0 {
		return 0, errors.New("no bars provided")
	}
	sum := 0.0
	for i := 0; i < tail.Len(); i++ {
		bar := tail.At(i)
		sum += bar.High - bar.Low
	}
	return sum / float64(tail.Len()), nil
}
