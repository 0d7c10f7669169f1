package model

import (
	"fmt"
	"strings"
	"time"
)

// Signal is the directional call produced for an instrument.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Signals lists every signal class in report order.
var Signals = []Signal{SignalBuy, SignalSell, SignalHold}

// ParseSignal accepts BUY, SELL or HOLD in any case.
func ParseSignal(s string) (Signal, error) {
	switch sig := Signal(strings.ToUpper(strings.TrimSpace(s))); sig {
	case SignalBuy, SignalSell, SignalHold:
		return sig, nil
	default:
		return "", fmt.Errorf("%w: unknown signal %q", ErrParseFailure, s)
	}
}

// SentimentLabel is the overall news tone.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// ParseSentimentLabel accepts positive, negative or neutral in any case.
func ParseSentimentLabel(s string) (SentimentLabel, error) {
	switch l := SentimentLabel(strings.ToLower(strings.TrimSpace(s))); l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return l, nil
	default:
		return "", fmt.Errorf("%w: unknown sentiment %q", ErrParseFailure, s)
	}
}

// NewsItem is one article considered by the sentiment analysis.
type NewsItem struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Summary   string `json:"summary"`
	Sentiment string `json:"sentiment"`
}

// MarketImpact is the expected effect of the news flow.
type MarketImpact struct {
	Level     string   `json:"level"`
	Direction string   `json:"direction"`
	Catalysts []string `json:"catalysts"`
	Concerns  []string `json:"concerns"`
}

// Sentiment is the validated result of the news sentiment stage.
type Sentiment struct {
	Overall      SentimentLabel `json:"overall_sentiment"`
	Score        float64        `json:"sentiment_score"`
	Confidence   float64        `json:"confidence,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	News         []NewsItem     `json:"news_articles,omitempty"`
	MarketImpact *MarketImpact  `json:"market_impact,omitempty"`
	KeyThemes    []string       `json:"key_themes,omitempty"`
	Fallback     bool           `json:"fallback,omitempty"`
}

// NeutralSentiment is used when sentiment analysis is unavailable.
func NeutralSentiment(reason string) *Sentiment {
	return &Sentiment{
		Overall:   SentimentNeutral,
		Score:     0,
		Reasoning: reason,
		Fallback:  true,
	}
}

// Recommendation is the final synthesized call for an instrument.
type Recommendation struct {
	Symbol          string    `json:"ticker"`
	Signal          Signal    `json:"recommendation"`
	Confidence      float64   `json:"confidence_score"`
	Reasoning       string    `json:"reasoning"`
	KeyFactors      []string  `json:"key_factors,omitempty"`
	Timeframe       string    `json:"timeframe,omitempty"`
	RiskLevel       string    `json:"risk_level,omitempty"`
	EntryStrategy   string    `json:"entry_strategy,omitempty"`
	ExitStrategy    string    `json:"exit_strategy,omitempty"`
	Warnings        []string  `json:"warnings,omitempty"`
	ConvictionLevel string    `json:"conviction_level,omitempty"`
	CurrentPrice    float64   `json:"current_price"`
	GeneratedAt     time.Time `json:"timestamp"`
}

// Actionable reports whether the call is a BUY or SELL at or above threshold.
func (r *Recommendation) Actionable(threshold float64) bool {
	if r == nil || r.Signal == SignalHold {
		return false
	}
	return r.Confidence >= threshold
}
