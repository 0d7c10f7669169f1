package risk

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/calculator"
	"PortfolioSentinel/internal/model"
)

// Fixed offsets used when no support or resistance hint applies, and for clamping.
const (
	levelBuffer         = 0.99
	defaultSupportRatio = 0.95
	defaultTP1Ratio     = 1.10
	defaultTP2Ratio     = 1.20
	tp2OverTP1Ratio     = 1.15
)

// Params tunes the level heuristics. Percentages are whole numbers (5 = 5%).
type Params struct {
	StopLossPct      float64
	TakeProfit1Pct   float64
	TakeProfit2Pct   float64
	ATRStopMult      float64
	ATRTP1Mult       float64
	ATRTP2Mult       float64
	ATRPeriod        int
	VolatilityPeriod int
}

// DefaultParams returns the stock heuristics: 2/3/5 x ATR and 5/10/20 percent.
func DefaultParams() Params {
	return Params{
		StopLossPct:      5,
		TakeProfit1Pct:   10,
		TakeProfit2Pct:   20,
		ATRStopMult:      2,
		ATRTP1Mult:       3,
		ATRTP2Mult:       5,
		ATRPeriod:        calculator.DefaultATRPeriod,
		VolatilityPeriod: calculator.DefaultVolatilityPeriod,
	}
}

// Calculator derives stop-loss and take-profit levels. It never fails.
type Calculator struct {
	params Params
	now    func() time.Time
	logger zerolog.Logger
}

// Option customizes a Calculator.
type Option func(*Calculator)

// WithClock sets the clock stamped into ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator creates a Calculator.
func NewCalculator(params Params, logger zerolog.Logger, opts ...Option) *Calculator {
	c := &Calculator{
		params: params,
		now:    time.Now,
		logger: logger.With().Str("component", "risk").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate returns risk levels for a position entered at price. Without a
// usable series the levels are the fixed percentage defaults.
func (c *Calculator) Calculate(symbol string, price float64, series *model.HistoricalSeries, hints model.Levels) model.RiskLevels {
	if !finite(price) || price <= 0 {
		c.logger.Warn().Str("symbol", symbol).Float64("price", price).Msg("unusable price, returning flat levels")
		return c.flatLevels(symbol, price)
	}
	if series.Empty() {
		c.logger.Debug().Str("symbol", symbol).Msg("no price history, using default levels")
		return c.DefaultLevels(symbol, price)
	}

	atr, atrFallback := calculator.ATR(series, c.params.ATRPeriod)
	vol, volFallback := calculator.Volatility(series, c.params.VolatilityPeriod)
	if atrFallback || volFallback {
		c.logger.Debug().Str("symbol", symbol).
			Bool("atr_fallback", atrFallback).
			Bool("volatility_fallback", volFallback).
			Msg("estimator fell back")
	}

	sl := c.stopLoss(price, atr, hints.Support)
	tp1 := c.takeProfit1(price, atr, hints.Resistance)
	tp2 := c.takeProfit2(price, tp1, atr, hints.Resistance)

	if !(finite(sl) && finite(tp1) && finite(tp2)) || !(sl < price && price < tp1 && tp1 < tp2) {
		c.logger.Warn().Str("symbol", symbol).
			Float64("stop_loss", sl).Float64("tp1", tp1).Float64("tp2", tp2).
			Msg("inconsistent levels, using defaults")
		return c.DefaultLevels(symbol, price)
	}

	levels := c.build(symbol, price, sl, tp1, tp2)
	levels.RiskRewardRatio1, levels.RiskRewardRatio2 = ratios(price, sl, tp1, tp2)
	levels.Volatility = vol
	levels.ATR = atr
	return levels
}

// DefaultLevels builds levels purely from the configured percentages, with
// fixed 2.0 and 4.0 risk/reward ratios.
func (c *Calculator) DefaultLevels(symbol string, price float64) model.RiskLevels {
	sl := price * (1 - c.params.StopLossPct/100)
	tp1 := price * (1 + c.params.TakeProfit1Pct/100)
	tp2 := price * (1 + c.params.TakeProfit2Pct/100)

	levels := c.build(symbol, price, sl, tp1, tp2)
	levels.RiskRewardRatio1 = 2.0
	levels.RiskRewardRatio2 = 4.0
	levels.IsDefaultFallback = true
	return levels
}

// flatLevels is returned for a price no level can be derived from. Stop-loss
// equals price, so both ratios are 0.
func (c *Calculator) flatLevels(symbol string, price float64) model.RiskLevels {
	return model.RiskLevels{
		Symbol:            symbol,
		CurrentPrice:      price,
		StopLoss:          price,
		TakeProfit1:       price,
		TakeProfit2:       price,
		ComputedAt:        c.now(),
		IsDefaultFallback: true,
	}
}

func (c *Calculator) build(symbol string, price, sl, tp1, tp2 float64) model.RiskLevels {
	return model.RiskLevels{
		Symbol:          symbol,
		CurrentPrice:    price,
		StopLoss:        sl,
		TakeProfit1:     tp1,
		TakeProfit2:     tp2,
		StopLossPercent: percentFrom(price, sl),
		TP1Percent:      percentFrom(price, tp1),
		TP2Percent:      percentFrom(price, tp2),
		ComputedAt:      c.now(),
	}
}

// stopLoss takes the tightest of the ATR, percentage and support candidates.
func (c *Calculator) stopLoss(price, atr float64, support []float64) float64 {
	supportCandidate := price * defaultSupportRatio
	if s, ok := nearestBelow(support, price); ok {
		supportCandidate = s * levelBuffer
	}
	sl := maxOf(
		price-c.params.ATRStopMult*atr,
		price*(1-c.params.StopLossPct/100),
		supportCandidate,
	)
	if !(sl < price) {
		sl = price * defaultSupportRatio
	}
	return sl
}

// takeProfit1 takes the nearest of the ATR, percentage and resistance targets.
func (c *Calculator) takeProfit1(price, atr float64, resistance []float64) float64 {
	resistanceCandidate := price * defaultTP1Ratio
	if r, ok := nearestAbove(resistance, price); ok {
		resistanceCandidate = r * levelBuffer
	}
	tp := minOf(
		price+c.params.ATRTP1Mult*atr,
		price*(1+c.params.TakeProfit1Pct/100),
		resistanceCandidate,
	)
	if !(tp > price) {
		tp = price * defaultTP1Ratio
	}
	return tp
}

func (c *Calculator) takeProfit2(price, tp1, atr float64, resistance []float64) float64 {
	resistanceCandidate := price * defaultTP2Ratio
	if r, ok := nearestAbove(resistance, tp1); ok {
		resistanceCandidate = r * levelBuffer
	}
	tp := minOf(
		price+c.params.ATRTP2Mult*atr,
		price*(1+c.params.TakeProfit2Pct/100),
		resistanceCandidate,
	)
	if !(tp > tp1) {
		tp = tp1 * tp2OverTP1Ratio
	}
	return tp
}

// MeetsMinRiskReward reports whether the first target pays at least minRatio
// times the risk taken.
func MeetsMinRiskReward(levels model.RiskLevels, minRatio float64) bool {
	return levels.RiskRewardRatio1 >= minRatio
}

func ratios(price, sl, tp1, tp2 float64) (float64, float64) {
	risk := math.Abs(price - sl)
	if risk == 0 {
		return 0, 0
	}
	return math.Abs(tp1-price) / risk, math.Abs(tp2-price) / risk
}

func percentFrom(price, level float64) float64 {
	return (level - price) / price * 100
}

func nearestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if finite(l) && l > 0 && l < price && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

func nearestAbove(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if finite(l) && l > price && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}

// maxOf and minOf skip NaN candidates; NaN only comes back when all are NaN.
func maxOf(vs ...float64) float64 {
	out := math.NaN()
	for _, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}

func minOf(vs ...float64) float64 {
	out := math.NaN()
	for _, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v < out {
			out = v
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
