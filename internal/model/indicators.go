package model

import (
	"fmt"
	"strings"
)

// TrendDirection is the prevailing price direction.
type TrendDirection string

const (
	TrendUp       TrendDirection = "uptrend"
	TrendDown     TrendDirection = "downtrend"
	TrendSideways TrendDirection = "sideways"
)

// ParseTrendDirection accepts the closed set of trend labels in any case.
func ParseTrendDirection(s string) (TrendDirection, error) {
	switch d := TrendDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case TrendUp, TrendDown, TrendSideways:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown trend direction %q", ErrParseFailure, s)
	}
}

// OverallSignal is the technical bias.
type OverallSignal string

const (
	Bullish OverallSignal = "bullish"
	Bearish OverallSignal = "bearish"
	Neutral OverallSignal = "neutral"
)

// ParseOverallSignal accepts bullish, bearish or neutral in any case.
func ParseOverallSignal(s string) (OverallSignal, error) {
	switch o := OverallSignal(strings.ToLower(strings.TrimSpace(s))); o {
	case Bullish, Bearish, Neutral:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown overall signal %q", ErrParseFailure, s)
	}
}

type RSIReading struct {
	Value          float64 `json:"value"`
	Signal         string  `json:"signal"`
	Interpretation string  `json:"interpretation"`
}

type MACDReading struct {
	MACDLine       float64 `json:"macd_line"`
	SignalLine     float64 `json:"signal_line"`
	Histogram      float64 `json:"histogram"`
	Crossover      string  `json:"crossover"`
	Interpretation string  `json:"interpretation"`
}

type BollingerReading struct {
	Upper          float64 `json:"upper"`
	Middle         float64 `json:"middle"`
	Lower          float64 `json:"lower"`
	PricePosition  string  `json:"price_position"`
	Interpretation string  `json:"interpretation"`
}

type MovingAverages struct {
	SMA50       float64 `json:"sma_50"`
	SMA100      float64 `json:"sma_100"`
	SMA200      float64 `json:"sma_200"`
	EMA50       float64 `json:"ema_50"`
	EMA100      float64 `json:"ema_100"`
	EMA200      float64 `json:"ema_200"`
	GoldenCross bool    `json:"golden_cross"`
	DeathCross  bool    `json:"death_cross"`
}

// Levels holds support and resistance prices.
type Levels struct {
	Support    []float64 `json:"support_levels"`
	Resistance []float64 `json:"resistance_levels"`
}

type TrendReading struct {
	Direction      TrendDirection `json:"direction"`
	Strength       string         `json:"strength"`
	Interpretation string         `json:"interpretation"`
}

// TechnicalAnalysis is the validated generative technical analysis.
type TechnicalAnalysis struct {
	RSI               RSIReading        `json:"rsi"`
	MACD              MACDReading       `json:"macd"`
	Bollinger         *BollingerReading `json:"bollinger_bands,omitempty"`
	MovingAverages    *MovingAverages   `json:"moving_averages,omitempty"`
	SupportResistance Levels            `json:"support_resistance"`
	Trend             TrendReading      `json:"trend"`
	OverallSignal     OverallSignal     `json:"overall_signal"`
}

// FactorScore is one weighted component of the local trend score.
type FactorScore struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// LocalIndicators is the minimal indicator set computed without the analysis service.
type LocalIndicators struct {
	CurrentPrice  float64       `json:"current_price"`
	SMA50         float64       `json:"sma_50,omitempty"`
	SMA200        float64       `json:"sma_200,omitempty"`
	AboveSMA50    *bool         `json:"above_sma_50,omitempty"`
	AboveSMA200   *bool         `json:"above_sma_200,omitempty"`
	RSI           float64       `json:"rsi,omitempty"`
	Score         float64       `json:"score"`
	Factors       []FactorScore `json:"factors,omitempty"`
	OverallSignal OverallSignal `json:"overall_signal"`
}

// TechnicalSource tells which path produced a TechnicalReport.
type TechnicalSource string

const (
	TechnicalGenerative TechnicalSource = "generative"
	TechnicalLocal      TechnicalSource = "local"
)

// TechnicalReport is the stage 2 payload: either the generative analysis or the local fallback.
type TechnicalReport struct {
	Source   TechnicalSource    `json:"source"`
	Analysis *TechnicalAnalysis `json:"analysis,omitempty"`
	Local    *LocalIndicators   `json:"local,omitempty"`
}

// Hints returns the support/resistance levels usable by the risk calculator.
func (t *TechnicalReport) Hints() Levels {
	if t == nil || t.Analysis == nil {
		return Levels{}
	}
	return t.Analysis.SupportResistance
}

// Bias returns the overall technical signal regardless of source.
func (t *TechnicalReport) Bias() OverallSignal {
	switch {
	case t == nil:
		return Neutral
	case t.Analysis != nil && t.Analysis.OverallSignal != "":
		return t.Analysis.OverallSignal
	case t.Local != nil && t.Local.OverallSignal != "":
		return t.Local.OverallSignal
	default:
		return Neutral
	}
}
