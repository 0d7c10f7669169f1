package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PortfolioSentinel/internal/model"
)

func floats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%.2f", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func ints(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func technicalPrompt(symbol string, window *model.HistoricalSeries, ind Indicators) string {
	points := window.Points()
	closes := make([]float64, len(points))
	highs := make([]float64, len(points))
	lows := make([]float64, len(points))
	volumes := make([]float64, len(points))
	for i, p := range points {
		closes[i], highs[i], lows[i], volumes[i] = p.Close, p.High, p.Low, p.Volume
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert quantitative analyst. Analyze the following price data for %s and calculate technical indicators.\n\n", symbol)
	fmt.Fprintf(&b, "Price data (most recent %d periods, oldest first):\n", len(points))
	fmt.Fprintf(&b, "- Closing prices: %s\n- High prices: %s\n- Low prices: %s\n- Volume: %s\n\n",
		floats(closes), floats(highs), floats(lows), floats(volumes))
	b.WriteString("Required calculations:\n")
	fmt.Fprintf(&b, "1. RSI, period %d; overbought above %.0f, oversold below %.0f.\n", ind.RSIPeriod, ind.RSIOverbought, ind.RSIOversold)
	fmt.Fprintf(&b, "2. MACD %d/%d/%d: MACD line, signal line, histogram, crossover.\n", ind.MACDFast, ind.MACDSlow, ind.MACDSignal)
	fmt.Fprintf(&b, "3. Bollinger Bands, period %d, %.1f standard deviations, and price position.\n", ind.BollingerPeriod, ind.BollingerStdDev)
	fmt.Fprintf(&b, "4. SMA and EMA for periods %s; golden or death cross.\n", ints(ind.MAPeriods))
	b.WriteString("5. At least two support and two resistance levels.\n")
	b.WriteString("6. Trend direction (uptrend, downtrend, sideways) and strength (strong, moderate, weak).\n\n")
	b.WriteString(`Respond with JSON only, in this shape:
{
  "rsi": {"value": <float>, "signal": "overbought|neutral|oversold", "interpretation": "<text>"},
  "macd": {"macd_line": <float>, "signal_line": <float>, "histogram": <float>, "crossover": "bullish|bearish|none", "interpretation": "<text>"},
  "bollinger_bands": {"upper": <float>, "middle": <float>, "lower": <float>, "price_position": "above_upper|within_bands|below_lower", "interpretation": "<text>"},
  "moving_averages": {"sma_50": <float>, "sma_100": <float>, "sma_200": <float>, "ema_50": <float>, "ema_100": <float>, "ema_200": <float>, "golden_cross": <bool>, "death_cross": <bool>},
  "support_resistance": {"support_levels": [<float>, <float>], "resistance_levels": [<float>, <float>]},
  "trend": {"direction": "uptrend|downtrend|sideways", "strength": "strong|moderate|weak", "interpretation": "<text>"},
  "overall_signal": "bullish|bearish|neutral"
}`)
	return b.String()
}

func sentimentPrompt(symbol, name string, lookbackHours, maxArticles int) string {
	subject := name
	if subject == "" {
		subject = symbol
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert financial news analyst. Find and analyze the most recent news and market sentiment for %s (ticker: %s).\n\n", subject, symbol)
	fmt.Fprintf(&b, "Focus on news from the last %d hours and consider up to %d relevant articles from credible financial sources: earnings, product launches, analyst ratings, regulatory updates.\n\n", lookbackHours, maxArticles)
	b.WriteString("Classify the overall sentiment as positive, negative or neutral and score it from -1.0 (very negative) to 1.0 (very positive).\n\n")
	b.WriteString(`Respond with JSON only, in this shape:
{
  "news_articles": [{"title": "<text>", "source": "<text>", "timestamp": "<text>", "summary": "<text>", "sentiment": "positive|negative|neutral"}],
  "overall_sentiment": "positive|negative|neutral",
  "sentiment_score": <float between -1.0 and 1.0>,
  "confidence": <float between 0 and 100>,
  "reasoning": "<text>",
  "market_impact": {"level": "high|medium|low", "direction": "bullish|bearish|neutral", "catalysts": ["<text>"], "concerns": ["<text>"]},
  "key_themes": ["<text>"]
}`)
	return b.String()
}

func recommendationPrompt(in RecommendationInput, now time.Time) string {
	technical, _ := json.MarshalIndent(in.Technical, "", "  ")
	sentiment, _ := json.MarshalIndent(in.Sentiment, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert financial analyst and portfolio manager. Analyze the following data for %s (%s) and provide a clear trading recommendation.\n\n", in.Instrument.DisplayName(), in.Instrument.Ticker)
	fmt.Fprintf(&b, "Market data:\n- Ticker: %s\n- Current price: %.2f\n- Timestamp: %s\n\n", in.Instrument.Ticker, in.Quote.Price, now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Technical analysis (overall bias: %s):\n%s\n\n", in.Technical.Bias(), technical)
	fmt.Fprintf(&b, "Sentiment analysis:\n%s\n\n", sentiment)
	if r := in.Risk; r != nil {
		fmt.Fprintf(&b, "Risk management:\n- Stop loss: %.2f (%.2f%%)\n- Take profit 1: %.2f (%.2f%%)\n- Take profit 2: %.2f (%.2f%%)\n- Risk/reward ratio: %.2f\n- Volatility: %.2f%%\n\n",
			r.StopLoss, r.StopLossPercent, r.TakeProfit1, r.TP1Percent, r.TakeProfit2, r.TP2Percent, r.RiskRewardRatio1, r.Volatility*100)
	}
	b.WriteString("Decision criteria:\n")
	fmt.Fprintf(&b, "- BUY: bullish technical and sentiment signals with a risk/reward above %.1f.\n", in.MinRiskReward)
	b.WriteString("- SELL: bearish signals, negative sentiment or poor risk/reward.\n")
	b.WriteString("- HOLD: mixed signals, neutral sentiment or unclear trend.\n")
	fmt.Fprintf(&b, "Target at least %.0f%% confidence for BUY or SELL; recommend HOLD when signals are unclear.\n\n", in.ConfidenceThreshold)
	b.WriteString(`Respond with JSON only, in this shape:
{
  "recommendation": "BUY|SELL|HOLD",
  "confidence_score": <0-100>,
  "reasoning": "<text>",
  "key_factors": ["<text>"],
  "timeframe": "short_term|medium_term|long_term",
  "risk_level": "low|medium|high",
  "entry_strategy": "<text>",
  "exit_strategy": "<text>",
  "warnings": ["<text>"],
  "conviction_level": "high|medium|low"
}`)
	return b.String()
}
