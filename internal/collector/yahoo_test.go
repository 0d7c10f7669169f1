package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"regularMarketPrice":102,"chartPreviousClose":98,"previousClose":100},
  "timestamp":[1704200400,1704200460,1704200520],
  "indicators":{"quote":[{
    "open":[100,101,null],
    "high":[101.5,103,null],
    "low":[99.5,100.5,null],
    "close":[101,102,null],
    "volume":[1000,2000,null]
  }]}
}],"error":null}}`

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooFetcher {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher(ClientOptions{RequestsPerSec: 100, MaxRetryElapsed: time.Second})
	f.BaseURL = srv.URL
	return f
}

func TestYahooFetchQuote(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(chartBody))
	})

	q, err := f.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 102.0, q.Price)
	assert.Equal(t, 100.0, q.PreviousClose)
	assert.Equal(t, 103.0, q.DayHigh)
	assert.Equal(t, 99.5, q.DayLow)
	assert.InDelta(t, 2.0, q.Change, 1e-9)
	assert.InDelta(t, 2.0, q.ChangePercent, 1e-9)
}

func TestYahooFetchBarsKeepsNullsAsNaN(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(chartBody))
	})
	bars, err := f.FetchBars(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.True(t, bars[2].Close != bars[2].Close, "null close decodes to NaN")
}

func TestYahooSymbolMap(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		_, _ = w.Write([]byte(chartBody))
	})
	_, err := f.FetchBars(context.Background(), "SPX500", "1mo", "1d")
	require.NoError(t, err)
}

func TestYahooClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "not found", http.StatusNotFound)
	})
	_, err := f.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	var serr *StatusError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, calls)
}
