package analysis

import (
	"context"
	"fmt"

	"PortfolioSentinel/internal/model"
)

// RecommendationInput carries the upstream stage payloads.
type RecommendationInput struct {
	Instrument          model.Instrument
	Quote               *model.LiveQuote
	Technical           *model.TechnicalReport
	Sentiment           *model.Sentiment
	Risk                *model.RiskLevels
	MinRiskReward       float64
	ConfidenceThreshold float64
}

// Technical requests a technical analysis over the trailing price window.
func (a *Analyst) Technical(ctx context.Context, symbol string, series *model.HistoricalSeries) (*model.TechnicalAnalysis, error) {
	if series.Empty() {
		return nil, fmt.Errorf("%w: no price window for %s", model.ErrDataUnavailable, symbol)
	}
	window := series.Tail(a.cfg.Indicators.PriceWindow)
	text, err := a.complete(ctx, "technical", technicalPrompt(symbol, window, a.cfg.Indicators))
	if err != nil {
		return nil, err
	}
	ta, err := ParseTechnical(text)
	if err != nil {
		a.logger.Debug().Str("symbol", symbol).Str("response", truncate(text, 500)).Msg("unparseable technical response")
		return nil, err
	}
	return ta, nil
}

// Sentiment requests a news sentiment analysis.
func (a *Analyst) Sentiment(ctx context.Context, symbol, name string) (*model.Sentiment, error) {
	text, err := a.complete(ctx, "sentiment", sentimentPrompt(symbol, name, a.cfg.NewsLookbackHours, a.cfg.MaxNewsArticles))
	if err != nil {
		return nil, err
	}
	s, err := ParseSentiment(text)
	if err != nil {
		a.logger.Debug().Str("symbol", symbol).Str("response", truncate(text, 500)).Msg("unparseable sentiment response")
		return nil, err
	}
	return s, nil
}

// Recommend synthesizes the final signal from the upstream payloads.
func (a *Analyst) Recommend(ctx context.Context, in RecommendationInput) (*model.Recommendation, error) {
	if !in.Quote.Usable() {
		return nil, fmt.Errorf("%w: no price for %s", model.ErrDataUnavailable, in.Instrument.Ticker)
	}
	now := a.now()
	text, err := a.complete(ctx, "recommendation", recommendationPrompt(in, now))
	if err != nil {
		return nil, err
	}
	rec, err := ParseRecommendation(text)
	if err != nil {
		a.logger.Debug().Str("symbol", in.Instrument.Ticker).Str("response", truncate(text, 500)).Msg("unparseable recommendation response")
		return nil, err
	}
	rec.Symbol = in.Instrument.Ticker
	rec.CurrentPrice = in.Quote.Price
	rec.GeneratedAt = now
	a.logger.Info().Str("symbol", rec.Symbol).Str("signal", string(rec.Signal)).
		Float64("confidence", rec.Confidence).Msg("recommendation generated")
	return rec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
