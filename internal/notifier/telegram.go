package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/metrics"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

// botAPI is the subset of *tgbotapi.BotAPI the notifier uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	BotToken   string
	ChatID     string
	Proxy      string
	MaxRetries int
}

// Telegram sends messages to one chat via the Bot API and serves chat commands.
type Telegram struct {
	api        botAPI
	chatID     int64
	maxRetries int
	retryWait  time.Duration
	metrics    *metrics.Recorder
	logger     zerolog.Logger
}

// NewTelegram authorizes the bot, with optional proxy support.
func NewTelegram(cfg TelegramConfig, logger zerolog.Logger, m *metrics.Recorder) (*Telegram, error) {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{Timeout: 75 * time.Second, Transport: transport}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	t, err := newTelegram(bot, cfg, logger, m)
	if err != nil {
		return nil, err
	}
	t.logger.Info().Str("username", bot.Self.UserName).Msg("authorized on telegram")
	return t, nil
}

func newTelegram(api botAPI, cfg TelegramConfig, logger zerolog.Logger, m *metrics.Recorder) (*Telegram, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.ChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse telegram chat id %q: %w", cfg.ChatID, err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Telegram{
		api:        api,
		chatID:     chatID,
		maxRetries: cfg.MaxRetries,
		retryWait:  time.Second,
		metrics:    m,
		logger:     logger.With().Str("component", "telegram").Logger(),
	}, nil
}

// Send delivers text to the configured chat, splitting long messages and
// retrying each part with exponential backoff.
func (t *Telegram) Send(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, maxMessageLen) {
		err := t.sendWithRetry(ctx, t.chatID, part)
		t.metrics.ObserveNotification(err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) sendWithRetry(ctx context.Context, chatID int64, text string) error {
	operation := func() error {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		_, err := t.api.Send(msg)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxRetries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		attempt++
		t.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("telegram send failed")
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// CommandHandler answers a chat command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

// StartPolling long-polls for chat commands until ctx is cancelled. Messages
// from chats other than the configured one are ignored.
func (t *Telegram) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)
	t.logger.Info().Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.logger.Info().Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update, handler)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update, handler CommandHandler) {
	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if msg.Chat == nil || msg.Chat.ID != t.chatID {
		t.logger.Warn().Int("update_id", update.UpdateID).Msg("ignoring message from unknown chat")
		return
	}

	text := strings.TrimSpace(msg.Text)
	t.logger.Info().Str("command", text).Msg("received command")
	reply := handler(ctx, text)
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		t.logger.Error().Err(err).Msg("send reply")
	}
}

// splitMessage cuts HTML text into parts of at most limit bytes. It prefers
// line breaks, then spaces, and never cuts inside a tag or an entity. Tags
// open at a cut are closed in that part and reopened in the next.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	for len(text) > limit {
		cut, skip := cutPoint(text, limit)
		open := openTags(text[:cut])
		if c := closeTags(open); c != "" && cut+len(c) > limit {
			cut, skip = cutPoint(text, limit-len(c))
			open = openTags(text[:cut])
		}
		parts = append(parts, text[:cut]+closeTags(open))

		var reopen strings.Builder
		for _, tag := range open {
			reopen.WriteString(tag.raw)
		}
		text = reopen.String() + text[cut+skip:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// maxEntityLen bounds an HTML entity such as &amp; or &#128200;.
const maxEntityLen = 10

// cutPoint returns where to end a part of text no longer than limit, and how
// many separator bytes to drop after it.
func cutPoint(text string, limit int) (cut, skip int) {
	head := text[:limit]
	if i := strings.LastIndexByte(head, '\n'); i > 0 && !insideMarkup(text[:i]) {
		return i, 1
	}
	for i := strings.LastIndexByte(head, ' '); i > 0; i = strings.LastIndexByte(head[:i], ' ') {
		if !insideMarkup(text[:i]) {
			return i, 1
		}
	}
	for cut = limit; cut > 0; cut-- {
		if utf8Start(text[cut]) && !insideMarkup(text[:cut]) {
			return cut, 0
		}
	}
	cut = limit
	for cut > 1 && !utf8Start(text[cut]) {
		cut--
	}
	return cut, 0
}

// insideMarkup reports whether head ends inside an unfinished tag or entity.
func insideMarkup(head string) bool {
	if strings.LastIndexByte(head, '<') > strings.LastIndexByte(head, '>') {
		return true
	}
	amp := strings.LastIndexByte(head, '&')
	return amp >= 0 && amp > strings.LastIndexByte(head, ';') && len(head)-amp <= maxEntityLen
}

var tagPattern = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9-]*)[^>]*>`)

type htmlTag struct {
	raw  string
	name string
}

// openTags returns the tags of s still open at its end, outermost first.
func openTags(s string) []htmlTag {
	var stack []htmlTag
	for _, m := range tagPattern.FindAllStringSubmatch(s, -1) {
		name := strings.ToLower(m[2])
		if m[1] == "" {
			stack = append(stack, htmlTag{raw: m[0], name: name})
			continue
		}
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].name == name {
				stack = stack[:i]
				break
			}
		}
	}
	return stack
}

func closeTags(open []htmlTag) string {
	var b strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i].name + ">")
	}
	return b.String()
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
