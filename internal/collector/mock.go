package collector

import (
	"context"
	"time"

	"PortfolioSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price    float64
	Bars     []model.PricePoint
	QuoteErr error
	BarsErr  error
	Calls    int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string) (*model.LiveQuote, error) {
	m.Calls++
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	q := &model.LiveQuote{
		Symbol:        symbol,
		Price:         m.Price,
		Open:          m.Price,
		High:          m.Price,
		Low:           m.Price,
		DayHigh:       m.Price,
		DayLow:        m.Price,
		PreviousClose: m.Price,
		Timestamp:     time.Now().UTC(),
	}
	finishQuote(q)
	return q, nil
}

func (m *MockFetcher) FetchBars(_ context.Context, _ string, period, _ string) ([]model.PricePoint, error) {
	m.Calls++
	if m.BarsErr != nil {
		return nil, m.BarsErr
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	return generateMockBars(m.Price, barsFor(period, "1d")), nil
}

func generateMockBars(basePrice float64, count int) []model.PricePoint {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.PricePoint{
			Time:   now.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
