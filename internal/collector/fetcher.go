package collector

import (
	"context"

	"PortfolioSentinel/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*model.LiveQuote, error)
	FetchBars(ctx context.Context, symbol, period, interval string) ([]model.PricePoint, error)
	Name() string
}

// finishQuote fills the change fields from the previous close.
func finishQuote(q *model.LiveQuote) {
	if q.PreviousClose <= 0 {
		q.PreviousClose = q.Price
	}
	q.Change = q.Price - q.PreviousClose
	if q.PreviousClose > 0 {
		q.ChangePercent = q.Change / q.PreviousClose * 100
	}
}

// periodDays converts a Yahoo-style period ("5d", "3mo", "1y") into calendar days.
func periodDays(period string) int {
	switch period {
	case "1d":
		return 1
	case "5d":
		return 5
	case "1mo":
		return 30
	case "3mo":
		return 91
	case "6mo":
		return 182
	case "2y":
		return 730
	case "5y":
		return 1826
	case "10y":
		return 3652
	default:
		return 365
	}
}

// barsFor estimates how many bars of interval cover period.
func barsFor(period, interval string) int {
	days := periodDays(period)
	switch interval {
	case "1wk":
		return days/7 + 1
	case "1mo":
		return days/30 + 1
	default:
		// trading days
		return days*5/7 + 1
	}
}
