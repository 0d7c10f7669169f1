package collector

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/cache"
	"PortfolioSentinel/internal/model"
)

func TestCollectorLiveQuoteIsCached(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	store := cache.NewMemory(time.Minute, func() time.Time { return now })
	m := &MockFetcher{Price: 101.5}
	c := NewCollector(m, store, zerolog.Nop())
	ctx := context.Background()

	q, err := c.LiveQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 101.5, q.Price)

	m.Price = 120
	q, err = c.LiveQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 101.5, q.Price, "served from cache")
	assert.Equal(t, 1, m.Calls)

	now = now.Add(time.Minute)
	q, err = c.LiveQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 120.0, q.Price)
	assert.Equal(t, 2, m.Calls)
}

func TestCollectorLiveQuoteUnavailable(t *testing.T) {
	c := NewCollector(&MockFetcher{QuoteErr: errors.New("timeout")}, cache.NewMemory(0, nil), zerolog.Nop())
	_, err := c.LiveQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)

	c = NewCollector(&MockFetcher{Price: 0}, nil, zerolog.Nop())
	_, err = c.LiveQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

type emptyFetcher struct{ MockFetcher }

func (*emptyFetcher) FetchQuote(context.Context, string) (*model.LiveQuote, error) {
	return nil, nil
}

func TestCollectorLiveQuoteNilQuote(t *testing.T) {
	c := NewCollector(&emptyFetcher{}, cache.NewMemory(0, nil), zerolog.Nop())
	_, err := c.LiveQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "no quote")

	c = NewCollector(&emptyFetcher{}, nil, zerolog.Nop(), WithFallback(&MockFetcher{Price: 42}))
	q, err := c.LiveQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 42.0, q.Price)
}

func TestCollectorFallbackFetcher(t *testing.T) {
	primary := &MockFetcher{QuoteErr: errors.New("down")}
	secondary := &MockFetcher{Price: 55}
	c := NewCollector(primary, nil, zerolog.Nop(), WithFallback(secondary))

	q, err := c.LiveQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 55.0, q.Price)
}

func TestCollectorHistoryNormalizes(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []model.PricePoint{
		{Time: day.AddDate(0, 0, 2), Open: 3, High: 3, Low: 3, Close: 3, Volume: 1},
		{Time: day, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Time: day.AddDate(0, 0, 1), Open: 2, High: math.NaN(), Low: 2, Close: 2, Volume: 1},
		{Time: day.AddDate(0, 0, 2), Open: 4, High: 4, Low: 4, Close: 4, Volume: 1},
	}
	store := cache.NewMemory(time.Minute, nil)
	c := NewCollector(&MockFetcher{Bars: bars}, store, zerolog.Nop())

	s, err := c.History(context.Background(), "X", "1y", "1d")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, s.Closes())

	cached, err := c.History(context.Background(), "X", "1y", "1d")
	require.NoError(t, err)
	assert.Equal(t, s.Points(), cached.Points())
}

func TestCollectorHistoryEmpty(t *testing.T) {
	c := NewCollector(&MockFetcher{Bars: []model.PricePoint{}}, nil, zerolog.Nop())
	_, err := c.History(context.Background(), "X", "1y", "1d")
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestAggregateDailyToWeekly(t *testing.T) {
	mon := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	daily := []model.PricePoint{
		{Time: mon, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1},
		{Time: mon.AddDate(0, 0, 1), Open: 10, High: 14, Low: 8, Close: 12, Volume: 2},
		{Time: mon.AddDate(0, 0, 7), Open: 12, High: 13, Low: 11, Close: 13, Volume: 3},
	}
	weekly := aggregateDailyToWeekly(daily)
	require.Len(t, weekly, 2)
	assert.Equal(t, model.PricePoint{Time: mon, Open: 10, High: 14, Low: 8, Close: 12, Volume: 3}, weekly[0])
	assert.Equal(t, 13.0, weekly[1].Close)
}

func TestBarsFor(t *testing.T) {
	assert.Equal(t, 261, barsFor("1y", "1d"))
	assert.Equal(t, 53, barsFor("1y", "1wk"))
}
