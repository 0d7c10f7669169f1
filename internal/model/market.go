package model

import (
	"math"
	"sort"
	"time"
)

// PricePoint represents a single candlestick bar.
type PricePoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (p PricePoint) valid() bool {
	for _, v := range [...]float64{p.Open, p.High, p.Low, p.Close, p.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !p.Time.IsZero()
}

// HistoricalSeries is an ordered, gap-free view of bars for one symbol.
// Timestamps are strictly increasing and no field is NaN.
type HistoricalSeries struct {
	Symbol   string
	Period   string
	Interval string
	points   []PricePoint
}

// NewHistoricalSeries normalizes raw bars: rows with missing values are dropped,
// bars are sorted ascending and duplicate timestamps keep the last row seen.
func NewHistoricalSeries(symbol, period, interval string, raw []PricePoint) *HistoricalSeries {
	points := make([]PricePoint, 0, len(raw))
	for _, p := range raw {
		if p.valid() {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	deduped := points[:0]
	for _, p := range points {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(p.Time) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	return &HistoricalSeries{Symbol: symbol, Period: period, Interval: interval, points: deduped}
}

// Len returns the number of bars. A nil series has length zero.
func (s *HistoricalSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// Empty reports whether the series holds no bars.
func (s *HistoricalSeries) Empty() bool { return s.Len() == 0 }

// At returns the i-th bar.
func (s *HistoricalSeries) At(i int) PricePoint { return s.points[i] }

// Points returns a copy of the bars.
func (s *HistoricalSeries) Points() []PricePoint {
	if s == nil {
		return nil
	}
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Closes returns the close prices in order.
func (s *HistoricalSeries) Closes() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Tail returns a series holding the last n bars.
func (s *HistoricalSeries) Tail(n int) *HistoricalSeries {
	if s == nil {
		return nil
	}
	if n < 0 {
		n = 0
	}
	start := len(s.points) - n
	if start < 0 {
		start = 0
	}
	points := make([]PricePoint, len(s.points)-start)
	copy(points, s.points[start:])
	return &HistoricalSeries{Symbol: s.Symbol, Period: s.Period, Interval: s.Interval, points: points}
}

// Last returns the most recent bar.
func (s *HistoricalSeries) Last() (PricePoint, bool) {
	if s.Len() == 0 {
		return PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// LiveQuote is the latest traded price and the day's context for a symbol.
type LiveQuote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"current_price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	PreviousClose float64   `json:"previous_close"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Usable reports whether the quote carries a positive, finite price.
func (q *LiveQuote) Usable() bool {
	return q != nil && q.Price > 0 && !math.IsInf(q.Price, 0) && !math.IsNaN(q.Price)
}
