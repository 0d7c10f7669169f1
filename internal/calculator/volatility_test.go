package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PortfolioSentinel/internal/model"
)

func makeSeries(bars [][4]float64) *model.HistoricalSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]model.PricePoint, len(bars))
	for i, b := range bars {
		points[i] = model.PricePoint{
			Time: start.AddDate(0, 0, i), Open: b[0], High: b[1], Low: b[2], Close: b[3], Volume: 1000,
		}
	}
	return model.NewHistoricalSeries("TEST", "1y", "1d", points)
}

func flatSeries(n int, price, spread float64) *model.HistoricalSeries {
	bars := make([][4]float64, n)
	for i := range bars {
		bars[i] = [4]float64{price, price + spread/2, price - spread/2, price}
	}
	return makeSeries(bars)
}

func TestATREmptySeriesIsZero(t *testing.T) {
	v, fellBack := ATR(model.NewHistoricalSeries("X", "1y", "1d", nil), 14)
	assert.Equal(t, 0.0, v)
	assert.True(t, fellBack)

	v, _ = ATR(nil, 14)
	assert.Equal(t, 0.0, v)
}

func TestATRConstantRange(t *testing.T) {
	v, fellBack := ATR(flatSeries(30, 100, 2), 14)
	assert.False(t, fellBack)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestATRUsesGaps(t *testing.T) {
	// second bar gaps up: true range is |high - prevClose| = 12
	s := makeSeries([][4]float64{
		{100, 101, 99, 100},
		{110, 112, 109, 111},
	})
	v, fellBack := ATR(s, 14)
	assert.False(t, fellBack)
	assert.InDelta(t, (2.0+12.0)/2, v, 1e-9)
}

func TestATRTrailingWindow(t *testing.T) {
	bars := make([][4]float64, 0, 40)
	for i := 0; i < 20; i++ {
		bars = append(bars, [4]float64{100, 110, 90, 100})
	}
	for i := 0; i < 20; i++ {
		bars = append(bars, [4]float64{100, 101, 99, 100})
	}
	v, _ := ATR(makeSeries(bars), 14)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestATRNonNegativeForInvertedBars(t *testing.T) {
	bars := make([][4]float64, 20)
	for i := range bars {
		bars[i] = [4]float64{100, 95, 105, 100} // high below low
	}
	v, _ := ATR(makeSeries(bars), 14)
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestVolatilityFallback(t *testing.T) {
	v, fellBack := Volatility(nil, 20)
	assert.Equal(t, FallbackVolatility, v)
	assert.True(t, fellBack)

	v, fellBack = Volatility(flatSeries(2, 100, 1), 20)
	assert.Equal(t, FallbackVolatility, v, "a single return has no sample deviation")
	assert.True(t, fellBack)
}

func TestVolatilityAlternatingReturns(t *testing.T) {
	// closes alternate 100, 110, 100, 110 ... returns alternate +10%, -9.0909%
	bars := make([][4]float64, 21)
	for i := range bars {
		c := 100.0
		if i%2 == 1 {
			c = 110
		}
		bars[i] = [4]float64{c, c + 1, c - 1, c}
	}
	v, fellBack := Volatility(makeSeries(bars), 20)
	assert.False(t, fellBack)

	up, down := 0.1, -10.0/110.0
	mean := (up + down) / 2
	want := math.Sqrt(20 * math.Pow(up-mean, 2) / 19)
	assert.InDelta(t, want, v, 1e-9)
}

func TestVolatilityFlatIsZero(t *testing.T) {
	v, fellBack := Volatility(flatSeries(30, 50, 1), 20)
	assert.False(t, fellBack)
	assert.Equal(t, 0.0, v)
}
