package collector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"PortfolioSentinel/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	client    *apiClient
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(opts ClientOptions) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: defaultYahooBaseURL,
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		client: newAPIClient(opts),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat maps JSON nulls to NaN so the series normalization drops the row.
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return math.NaN()
	}
}

func at(vs []interface{}, i int) interface{} {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) (*yahooChart, []model.PricePoint, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), url.QueryEscape(interval), url.QueryEscape(rng))

	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")

	var chart yahooChart
	if err := f.client.getJSON(ctx, u, header, &chart); err != nil {
		return nil, nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return &chart, nil, nil
	}
	quote := result.Indicators.Quote[0]
	bars := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bars = append(bars, model.PricePoint{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   toFloat(at(quote.Open, i)),
			High:   toFloat(at(quote.High, i)),
			Low:    toFloat(at(quote.Low, i)),
			Close:  toFloat(at(quote.Close, i)),
			Volume: toFloat(at(quote.Volume, i)),
		})
	}
	return &chart, bars, nil
}

// FetchBars returns raw bars for a Yahoo range such as "1y" and interval such as "1d".
func (f *YahooFetcher) FetchBars(ctx context.Context, symbol, period, interval string) ([]model.PricePoint, error) {
	_, bars, err := f.fetchChart(ctx, symbol, interval, period)
	return bars, err
}

// FetchQuote reads today's one-minute bars and reports the latest one.
func (f *YahooFetcher) FetchQuote(ctx context.Context, symbol string) (*model.LiveQuote, error) {
	chart, raw, err := f.fetchChart(ctx, symbol, "1m", "1d")
	if err != nil {
		return nil, err
	}
	meta := chart.Chart.Result[0].Meta
	series := model.NewHistoricalSeries(symbol, "1d", "1m", raw)

	q := &model.LiveQuote{Symbol: symbol, PreviousClose: meta.PreviousClose}
	if q.PreviousClose == 0 {
		q.PreviousClose = meta.ChartPreviousClose
	}

	last, ok := series.Last()
	if !ok {
		if meta.RegularMarketPrice <= 0 {
			return nil, fmt.Errorf("yahoo: no price data for %s", symbol)
		}
		q.Price = meta.RegularMarketPrice
		q.Timestamp = time.Now().UTC()
		finishQuote(q)
		return q, nil
	}

	q.Price = last.Close
	q.Open = last.Open
	q.High = last.High
	q.Low = last.Low
	q.Volume = last.Volume
	q.Timestamp = last.Time
	q.DayHigh, q.DayLow = last.High, last.Low
	for _, p := range series.Points() {
		q.DayHigh = math.Max(q.DayHigh, p.High)
		q.DayLow = math.Min(q.DayLow, p.Low)
	}
	finishQuote(q)
	return q, nil
}
