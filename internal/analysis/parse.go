package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"PortfolioSentinel/internal/model"
)

// StripCodeFence returns the JSON body of a response that may be wrapped in a
// markdown code fence.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```json"); i >= 0 {
		body := text[i+len("```json"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		body := text[i+3:]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	return text
}

func decode(text string, out any) error {
	if err := json.Unmarshal([]byte(StripCodeFence(text)), out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrParseFailure, err)
	}
	return nil
}

type rawTechnical struct {
	RSI               *model.RSIReading       `json:"rsi"`
	MACD              *model.MACDReading      `json:"macd"`
	Bollinger         *model.BollingerReading `json:"bollinger_bands"`
	MovingAverages    *model.MovingAverages   `json:"moving_averages"`
	SupportResistance *model.Levels           `json:"support_resistance"`
	Trend             *struct {
		Direction      string `json:"direction"`
		Strength       string `json:"strength"`
		Interpretation string `json:"interpretation"`
	} `json:"trend"`
	OverallSignal string `json:"overall_signal"`
}

// ParseTechnical validates a technical analysis response. The rsi, macd and
// trend objects are required.
func ParseTechnical(text string) (*model.TechnicalAnalysis, error) {
	var raw rawTechnical
	if err := decode(text, &raw); err != nil {
		return nil, err
	}
	switch {
	case raw.RSI == nil:
		return nil, fmt.Errorf("%w: technical response missing rsi", model.ErrParseFailure)
	case raw.MACD == nil:
		return nil, fmt.Errorf("%w: technical response missing macd", model.ErrParseFailure)
	case raw.Trend == nil:
		return nil, fmt.Errorf("%w: technical response missing trend", model.ErrParseFailure)
	}

	direction, err := model.ParseTrendDirection(raw.Trend.Direction)
	if err != nil {
		return nil, err
	}
	overall := model.Neutral
	if raw.OverallSignal != "" {
		if overall, err = model.ParseOverallSignal(raw.OverallSignal); err != nil {
			return nil, err
		}
	}

	ta := &model.TechnicalAnalysis{
		RSI:            *raw.RSI,
		MACD:           *raw.MACD,
		Bollinger:      raw.Bollinger,
		MovingAverages: raw.MovingAverages,
		Trend: model.TrendReading{
			Direction:      direction,
			Strength:       raw.Trend.Strength,
			Interpretation: raw.Trend.Interpretation,
		},
		OverallSignal: overall,
	}
	if raw.SupportResistance != nil {
		ta.SupportResistance = *raw.SupportResistance
	}
	return ta, nil
}

type rawSentiment struct {
	OverallSentiment *string             `json:"overall_sentiment"`
	SentimentScore   *float64            `json:"sentiment_score"`
	Confidence       float64             `json:"confidence"`
	Reasoning        string              `json:"reasoning"`
	BriefReasoning   string              `json:"brief_reasoning"`
	News             []model.NewsItem    `json:"news_articles"`
	MarketImpact     *model.MarketImpact `json:"market_impact"`
	KeyThemes        []string            `json:"key_themes"`
}

// ParseSentiment validates a sentiment response: overall_sentiment must be one
// of the known labels and sentiment_score a number in [-1, 1].
func ParseSentiment(text string) (*model.Sentiment, error) {
	var raw rawSentiment
	if err := decode(text, &raw); err != nil {
		return nil, err
	}
	if raw.OverallSentiment == nil {
		return nil, fmt.Errorf("%w: sentiment response missing overall_sentiment", model.ErrParseFailure)
	}
	if raw.SentimentScore == nil {
		return nil, fmt.Errorf("%w: sentiment response missing sentiment_score", model.ErrParseFailure)
	}
	label, err := model.ParseSentimentLabel(*raw.OverallSentiment)
	if err != nil {
		return nil, err
	}
	score := *raw.SentimentScore
	if score < -1 || score > 1 {
		return nil, fmt.Errorf("%w: sentiment_score %v out of range", model.ErrParseFailure, score)
	}

	reasoning := raw.Reasoning
	if reasoning == "" {
		reasoning = raw.BriefReasoning
	}
	return &model.Sentiment{
		Overall:      label,
		Score:        score,
		Confidence:   raw.Confidence,
		Reasoning:    reasoning,
		News:         raw.News,
		MarketImpact: raw.MarketImpact,
		KeyThemes:    raw.KeyThemes,
	}, nil
}

type rawRecommendation struct {
	Recommendation  *string  `json:"recommendation"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Reasoning       *string  `json:"reasoning"`
	KeyFactors      []string `json:"key_factors"`
	Timeframe       string   `json:"timeframe"`
	RiskLevel       string   `json:"risk_level"`
	EntryStrategy   string   `json:"entry_strategy"`
	ExitStrategy    string   `json:"exit_strategy"`
	Warnings        []string `json:"warnings"`
	ConvictionLevel string   `json:"conviction_level"`
}

// ParseRecommendation validates a recommendation response. The confidence
// score is clamped to [0, 100].
func ParseRecommendation(text string) (*model.Recommendation, error) {
	var raw rawRecommendation
	if err := decode(text, &raw); err != nil {
		return nil, err
	}
	if raw.Recommendation == nil || raw.ConfidenceScore == nil {
		return nil, fmt.Errorf("%w: recommendation response missing recommendation or confidence_score", model.ErrParseFailure)
	}
	if raw.Reasoning == nil || strings.TrimSpace(*raw.Reasoning) == "" {
		return nil, fmt.Errorf("%w: recommendation response missing reasoning", model.ErrParseFailure)
	}
	signal, err := model.ParseSignal(*raw.Recommendation)
	if err != nil {
		return nil, err
	}

	return &model.Recommendation{
		Signal:          signal,
		Confidence:      math.Max(0, math.Min(100, *raw.ConfidenceScore)),
		Reasoning:       strings.TrimSpace(*raw.Reasoning),
		KeyFactors:      raw.KeyFactors,
		Timeframe:       raw.Timeframe,
		RiskLevel:       raw.RiskLevel,
		EntryStrategy:   raw.EntryStrategy,
		ExitStrategy:    raw.ExitStrategy,
		Warnings:        raw.Warnings,
		ConvictionLevel: raw.ConvictionLevel,
	}, nil
}
