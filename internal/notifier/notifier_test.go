package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/model"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	failures int
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("bad gateway")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func newFakeTelegram(t *testing.T, bot *fakeBot) *Telegram {
	t.Helper()
	tg, err := newTelegram(bot, TelegramConfig{ChatID: "42", MaxRetries: 2}, zerolog.Nop(), nil)
	require.NoError(t, err)
	tg.retryWait = time.Millisecond
	return tg
}

func TestTelegramSendRetries(t *testing.T) {
	bot := &fakeBot{failures: 2}
	tg := newFakeTelegram(t, bot)

	require.NoError(t, tg.Send(context.Background(), "hello"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
}

func TestTelegramSendGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	tg := newFakeTelegram(t, bot)

	err := tg.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestNewTelegramRejectsBadChatID(t *testing.T) {
	_, err := newTelegram(&fakeBot{}, TelegramConfig{ChatID: "@channel"}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestPollingAnswersOnlyConfiguredChat(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 2)}
	tg := newFakeTelegram(t, bot)

	bot.updates <- tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{Text: "/status", Chat: &tgbotapi.Chat{ID: 7}}}
	bot.updates <- tgbotapi.Update{UpdateID: 2, Message: &tgbotapi.Message{Text: " /help ", Chat: &tgbotapi.Chat{ID: 42}}}
	close(bot.updates)

	var got []string
	tg.StartPolling(context.Background(), func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})

	assert.Equal(t, []string{"/help"}, got)
	assert.Equal(t, []string{"reply to /help"}, bot.texts())
}

func TestPollingStopsOnCancel(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	tg := newFakeTelegram(t, bot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tg.StartPolling(ctx, func(context.Context, string) string { return "" })
	assert.True(t, bot.stopped)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, parts)

	long := strings.Repeat("x", 25)
	parts = splitMessage(long, 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, parts)
}

func TestSplitMessagePrefersSpaces(t *testing.T) {
	assert.Equal(t, []string{"hello world", "again"}, splitMessage("hello world again", 12))
}

func TestSplitMessageKeepsMarkupWhole(t *testing.T) {
	parts := splitMessage("xxxxxxxx<b>bold</b>", 10)
	assert.Equal(t, []string{"xxxxxxxx", "<b>bol</b>", "<b>d</b>"}, parts)

	parts = splitMessage("aaaaaaaa&amp;bb", 10)
	assert.Equal(t, []string{"aaaaaaaa", "&amp;bb"}, parts)
}

func TestSplitMessageBalancesTags(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("<b>AAPL</b> BUY &amp; hold <i>note ")
		b.WriteString(strings.Repeat("z", i%7))
		b.WriteString("</i>\n")
	}
	for _, part := range splitMessage(b.String(), 60) {
		assert.LessOrEqual(t, len(part), 60)
		assert.Empty(t, openTags(part), "unbalanced part %q", part)
		assert.False(t, insideMarkup(part), "part ends inside markup: %q", part)
		assert.Equal(t, strings.Count(part, "<b>"), strings.Count(part, "</b>"))
	}
}

func TestMoneyRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, "96.03", money(96.0299999))
	assert.Equal(t, "126.50", money(126.5))
	assert.Equal(t, "-5.00", percent(-5)[:5])
}

func TestFormatRecommendation(t *testing.T) {
	res := &model.PipelineResult{
		Symbol:       "AAPL",
		Name:         "Apple",
		StageReached: model.StageRecommendation,
		Success:      true,
		Quote:        &model.LiveQuote{Price: 187.234},
		Risk: &model.RiskLevels{
			StopLoss: 177.87, TakeProfit1: 196.59, TakeProfit2: 205.96,
			StopLossPercent: -5, TP1Percent: 5, TP2Percent: 10, RiskRewardRatio1: 1,
		},
		Sentiment: &model.Sentiment{Overall: model.SentimentPositive, Score: 0.45},
		Recommendation: &model.Recommendation{
			Signal: model.SignalBuy, Confidence: 82, Reasoning: "Uptrend & strong earnings",
			KeyFactors: []string{"momentum"}, Warnings: []string{"earnings next week"},
		},
	}
	out := FormatRecommendation(res)

	assert.Contains(t, out, "🟢 <b>BUY Apple (AAPL)</b> | 82.00%")
	assert.Contains(t, out, "Price: 187.23")
	assert.Contains(t, out, "Stop loss: 177.87 (-5.00%)")
	assert.Contains(t, out, "Uptrend &amp; strong earnings")
	assert.Contains(t, out, "1. momentum")
	assert.Contains(t, out, "POSITIVE (0.45)")
}

func TestFormatRecommendationSkipped(t *testing.T) {
	res := &model.PipelineResult{
		Symbol:       "BAD",
		StageReached: model.StagePrice,
		Outcomes:     []model.StageOutcome{{Stage: model.StagePrice, Status: model.StatusAborted, Reason: "no quote"}},
	}
	out := FormatRecommendation(res)
	assert.Contains(t, out, "skipped at stage 1 (price)")
	assert.Contains(t, out, "no quote")
}

func TestFormatSummary(t *testing.T) {
	s := &model.BatchSummary{
		StartedAt: time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
		Total:     3,
		Succeeded: 2,
		Counts:    map[model.Signal]int{model.SignalBuy: 1, model.SignalHold: 1},
		BySignal: map[model.Signal][]model.SummaryEntry{
			model.SignalBuy:  {{Symbol: "AAPL", Confidence: 82, Price: 187.2, Actionable: true}},
			model.SignalHold: {{Symbol: "MSFT", Confidence: 55, Price: 410}},
		},
		Skipped: []model.SkippedInstrument{{Symbol: "BAD", Stage: model.StagePrice, Reason: "no quote"}},
	}
	out := FormatSummary(s)

	assert.Contains(t, out, "Analyzed 2/3")
	assert.Contains(t, out, "<b>BUY</b>: 1")
	assert.Contains(t, out, "<b>SELL</b>: 0")
	assert.Contains(t, out, "AAPL 82.00% @ 187.20")
	assert.Contains(t, out, "⭐")
	assert.Contains(t, out, "BAD (stage 1): no quote")
	assert.Less(t, strings.Index(out, "BUY"), strings.Index(out, "HOLD"))
}
