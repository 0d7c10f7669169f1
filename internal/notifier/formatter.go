package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"PortfolioSentinel/internal/model"
)

var signalEmoji = map[model.Signal]string{
	model.SignalBuy:  "🟢",
	model.SignalSell: "🔴",
	model.SignalHold: "🟡",
}

// money renders v rounded half away from zero to two decimals.
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// FormatRecommendation renders one pipeline result as a Telegram HTML message.
func FormatRecommendation(res *model.PipelineResult) string {
	var b strings.Builder
	rec := res.Recommendation
	if rec == nil {
		b.WriteString(fmt.Sprintf("⛔ <b>%s</b> skipped at stage %d (%s)\n", html.EscapeString(res.Symbol), int(res.StageReached), res.StageReached))
		if reason := res.AbortReason(); reason != "" {
			b.WriteString(html.EscapeString(reason) + "\n")
		}
		return b.String()
	}

	title := res.Symbol
	if res.Name != "" && res.Name != res.Symbol {
		title = fmt.Sprintf("%s (%s)", res.Name, res.Symbol)
	}
	b.WriteString(fmt.Sprintf("%s <b>%s %s</b> | %s%%\n", signalEmoji[rec.Signal], rec.Signal, html.EscapeString(title), money(rec.Confidence)))
	if res.Quote != nil {
		b.WriteString(fmt.Sprintf("Price: %s\n", money(res.Quote.Price)))
	}

	if r := res.Risk; r != nil {
		b.WriteString("\n<b>Risk</b>\n")
		b.WriteString(fmt.Sprintf("  Stop loss: %s (%s)\n", money(r.StopLoss), percent(r.StopLossPercent)))
		b.WriteString(fmt.Sprintf("  Take profit 1: %s (%s)\n", money(r.TakeProfit1), percent(r.TP1Percent)))
		b.WriteString(fmt.Sprintf("  Take profit 2: %s (%s)\n", money(r.TakeProfit2), percent(r.TP2Percent)))
		b.WriteString(fmt.Sprintf("  Risk/Reward: %s\n", money(r.RiskRewardRatio1)))
		if r.IsDefaultFallback {
			b.WriteString("  (default levels)\n")
		}
	}

	if t := res.Technical; t != nil {
		switch {
		case t.Analysis != nil:
			a := t.Analysis
			b.WriteString(fmt.Sprintf("\n<b>Technical</b>: RSI %s (%s), MACD %s, trend %s\n",
				money(a.RSI.Value), html.EscapeString(a.RSI.Signal), html.EscapeString(a.MACD.Crossover), a.Trend.Direction))
		case t.Local != nil:
			b.WriteString(fmt.Sprintf("\n<b>Technical</b> (local): RSI %s, score %+.3f, %s\n",
				money(t.Local.RSI), t.Local.Score, t.Local.OverallSignal))
		}
	}
	if s := res.Sentiment; s != nil {
		b.WriteString(fmt.Sprintf("<b>Sentiment</b>: %s (%s)\n", strings.ToUpper(string(s.Overall)), money(s.Score)))
	}

	if rec.Reasoning != "" {
		b.WriteString("\n" + html.EscapeString(rec.Reasoning) + "\n")
	}
	for i, f := range rec.KeyFactors {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, html.EscapeString(f)))
	}
	if rec.Timeframe != "" || rec.RiskLevel != "" {
		b.WriteString(fmt.Sprintf("\nTimeframe: %s | Risk level: %s\n", html.EscapeString(rec.Timeframe), strings.ToUpper(rec.RiskLevel)))
	}
	for _, w := range rec.Warnings {
		b.WriteString("⚠️ " + html.EscapeString(w) + "\n")
	}
	if res.Degraded() {
		b.WriteString("\n<i>Some stages used fallbacks.</i>\n")
	}
	return b.String()
}

// FormatSummary renders a cycle summary. Entries at or above threshold are
// marked as actionable.
func FormatSummary(s *model.BatchSummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Portfolio summary</b> | %s\n", s.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Analyzed %d/%d", s.Succeeded, s.Total))
	if s.Cancelled {
		b.WriteString(" (cancelled)")
	}
	b.WriteString("\n")

	for _, sig := range model.Signals {
		entries := s.BySignal[sig]
		b.WriteString(fmt.Sprintf("\n%s <b>%s</b>: %d\n", signalEmoji[sig], sig, s.Counts[sig]))
		for _, e := range entries {
			mark := ""
			if e.Actionable {
				mark = " ⭐"
			}
			b.WriteString(fmt.Sprintf("  %s %s%% @ %s  SL %s  TP %s/%s  R/R %s%s\n",
				html.EscapeString(e.Symbol), money(e.Confidence), money(e.Price),
				money(e.StopLoss), money(e.TakeProfit1), money(e.TakeProfit2), money(e.RiskReward), mark))
		}
	}

	if len(s.Skipped) > 0 {
		b.WriteString(fmt.Sprintf("\n⛔ <b>Skipped</b>: %d\n", len(s.Skipped)))
		for _, sk := range s.Skipped {
			b.WriteString(fmt.Sprintf("  %s (stage %d): %s\n", html.EscapeString(sk.Symbol), int(sk.Stage), html.EscapeString(sk.Reason)))
		}
	}
	return b.String()
}

// HelpText lists the supported chat commands.
func HelpText() string {
	return "Available commands:\n" +
		"/status - scheduler status\n" +
		"/summary - latest cycle summary\n" +
		"/analyze TICKER - analyze one instrument now\n" +
		"/help - this message"
}
