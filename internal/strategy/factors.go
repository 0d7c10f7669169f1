package strategy

import "PortfolioSentinel/internal/model"

func newFactor(name string, raw, weight float64) model.FactorScore {
	return model.FactorScore{Name: name, Raw: raw, Weight: weight, Weighted: raw * weight}
}

// scoreMA50 scores price against the 50-bar average. Weight: 0.30
func scoreMA50(price, sma50 float64) model.FactorScore {
	if sma50 == 0 {
		return newFactor("sma50", 0, 0.30)
	}
	return newFactor("sma50", deviationScore((price-sma50)/sma50*100), 0.30)
}

// scoreMA200 scores price against the 200-bar average. Weight: 0.35
func scoreMA200(price, sma200 float64) model.FactorScore {
	if sma200 == 0 {
		return newFactor("sma200", 0, 0.35)
	}
	return newFactor("sma200", deviationScore((price-sma200)/sma200*100), 0.35)
}

// scoreCross rewards the short average sitting above the long one. Weight: 0.15
func scoreCross(sma50, sma200 float64) model.FactorScore {
	switch {
	case sma50 == 0 || sma200 == 0:
		return newFactor("cross", 0, 0.15)
	case sma50 > sma200:
		return newFactor("cross", 1, 0.15)
	default:
		return newFactor("cross", -1, 0.15)
	}
}

// scoreRSI treats momentum as trend confirmation but fades the extremes. Weight: 0.20
func scoreRSI(rsi float64) model.FactorScore {
	var score float64
	switch {
	case rsi >= 80:
		score = -1.0
	case rsi >= 70:
		score = 0
	case rsi >= 55:
		score = 1.0
	case rsi > 45:
		score = 0
	case rsi > 30:
		score = -1.0
	case rsi > 20:
		score = 0
	default:
		score = 1.0
	}
	return newFactor("rsi", score, 0.20)
}

// deviationScore maps a percentage distance from an average to [-2, 2].
func deviationScore(deviation float64) float64 {
	switch {
	case deviation >= 10:
		return 2.0
	case deviation >= 5:
		return 1.5
	case deviation >= 2:
		return 1.0
	case deviation >= 0:
		return 0.5
	case deviation > -2:
		return -0.5
	case deviation > -5:
		return -1.0
	case deviation > -10:
		return -1.5
	default:
		return -2.0
	}
}

