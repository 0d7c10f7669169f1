package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"PortfolioSentinel/internal/model"
)

// VsTraderFetcher implements Fetcher using the vstrader REST API.
type VsTraderFetcher struct {
	BaseURL string
	APIKey  string
	client  *apiClient
}

// NewVsTraderFetcher creates a new fetcher.
func NewVsTraderFetcher(baseURL, apiKey string, opts ClientOptions) *VsTraderFetcher {
	return &VsTraderFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  newAPIClient(opts),
	}
}

func (f *VsTraderFetcher) Name() string { return "vstrader" }

// vsBar is the expected JSON shape from the vstrader API.
type vsBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type vsQuote struct {
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	PreviousClose float64 `json:"previous_close"`
	Timestamp     int64   `json:"timestamp"`
}

func (f *VsTraderFetcher) header() http.Header {
	h := http.Header{}
	if f.APIKey != "" {
		h.Set("Authorization", "Bearer "+f.APIKey)
	}
	return h
}

// FetchBars serves daily bars directly. Weekly bars come from the weekly
// endpoint, or are aggregated from daily bars when that endpoint fails.
func (f *VsTraderFetcher) FetchBars(ctx context.Context, symbol, period, interval string) ([]model.PricePoint, error) {
	limit := barsFor(period, interval)
	switch interval {
	case "1wk":
		bars, err := f.fetchBars(ctx, "weekly", symbol, limit)
		if err != nil {
			daily, dailyErr := f.fetchBars(ctx, "daily", symbol, barsFor(period, "1d"))
			if dailyErr != nil {
				return nil, fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr)
			}
			return aggregateDailyToWeekly(daily), nil
		}
		return bars, nil
	case "1d", "":
		return f.fetchBars(ctx, "daily", symbol, limit)
	default:
		return nil, fmt.Errorf("vstrader: unsupported interval %q", interval)
	}
}

func (f *VsTraderFetcher) FetchQuote(ctx context.Context, symbol string) (*model.LiveQuote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	var result vsQuote
	if err := f.client.getJSON(ctx, endpoint, f.header(), &result); err != nil {
		return nil, fmt.Errorf("fetch current price: %w", err)
	}
	q := &model.LiveQuote{
		Symbol:        symbol,
		Price:         result.Price,
		Open:          result.Open,
		High:          result.High,
		Low:           result.Low,
		DayHigh:       result.High,
		DayLow:        result.Low,
		Volume:        result.Volume,
		PreviousClose: result.PreviousClose,
		Timestamp:     time.Now().UTC(),
	}
	if result.Timestamp > 0 {
		q.Timestamp = time.Unix(result.Timestamp, 0).UTC()
	}
	finishQuote(q)
	return q, nil
}

func (f *VsTraderFetcher) fetchBars(ctx context.Context, resolution, symbol string, limit int) ([]model.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/%s?symbol=%s&limit=%d", f.BaseURL, resolution, url.QueryEscape(symbol), limit)
	var vsBars []vsBar
	if err := f.client.getJSON(ctx, endpoint, f.header(), &vsBars); err != nil {
		return nil, fmt.Errorf("fetch %s bars: %w", resolution, err)
	}
	bars := make([]model.PricePoint, len(vsBars))
	for i, vb := range vsBars {
		bars[i] = model.PricePoint{
			Time:   time.Unix(vb.Timestamp, 0).UTC(),
			Open:   vb.Open,
			High:   vb.High,
			Low:    vb.Low,
			Close:  vb.Close,
			Volume: vb.Volume,
		}
	}
	return model.NewHistoricalSeries(symbol, "", resolution, bars).Points(), nil
}

// aggregateDailyToWeekly converts ascending daily bars into ISO-week bars.
func aggregateDailyToWeekly(daily []model.PricePoint) []model.PricePoint {
	var weekly []model.PricePoint
	for _, d := range daily {
		year, week := d.Time.ISOWeek()
		if n := len(weekly); n > 0 {
			cy, cw := weekly[n-1].Time.ISOWeek()
			if cy == year && cw == week {
				w := &weekly[n-1]
				w.High = max(w.High, d.High)
				w.Low = min(w.Low, d.Low)
				w.Close = d.Close
				w.Volume += d.Volume
				continue
			}
		}
		weekly = append(weekly, d)
	}
	return weekly
}
