package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"PortfolioSentinel/internal/metrics"
	"PortfolioSentinel/internal/model"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Completer is the chat completion call the analyst depends on.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Indicators are the parameters quoted in the technical analysis request.
type Indicators struct {
	RSIPeriod       int
	RSIOverbought   float64
	RSIOversold     float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerStdDev float64
	MAPeriods       []int
	PriceWindow     int
}

// DefaultIndicators returns RSI 14 (70/30), MACD 12/26/9, Bollinger 20/2 and MAs 50/100/200.
func DefaultIndicators() Indicators {
	return Indicators{
		RSIPeriod:       14,
		RSIOverbought:   70,
		RSIOversold:     30,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
		MAPeriods:       []int{50, 100, 200},
		PriceWindow:     100,
	}
}

// Config configures the analysis client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float32
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetryElapsed   time.Duration
	NewsLookbackHours int
	MaxNewsArticles   int
	Indicators        Indicators
}

// Analyst requests technical, sentiment and recommendation analyses from an
// OpenAI-compatible chat completion service and validates the responses.
type Analyst struct {
	completer Completer
	cfg       Config
	limiter   *rate.Limiter
	now       func() time.Time
	metrics   *metrics.Recorder
	logger    zerolog.Logger
}

// Option customizes an Analyst.
type Option func(*Analyst)

// WithCompleter replaces the HTTP client, mainly for tests.
func WithCompleter(c Completer) Option {
	return func(a *Analyst) { a.completer = c }
}

// WithClock sets the clock stamped into recommendations.
func WithClock(now func() time.Time) Option {
	return func(a *Analyst) { a.now = now }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(a *Analyst) { a.metrics = m }
}

// New creates an Analyst.
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Analyst {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Indicators.RSIPeriod == 0 {
		cfg.Indicators = DefaultIndicators()
	}
	if cfg.Indicators.PriceWindow <= 0 {
		cfg.Indicators.PriceWindow = 100
	}
	if cfg.MaxRetryElapsed == 0 {
		cfg.MaxRetryElapsed = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	a := &Analyst{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		logger:  logger.With().Str("component", "analysis").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.completer == nil {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = cfg.BaseURL
		a.completer = openai.NewClientWithConfig(oc)
	}
	return a
}

// complete sends one prompt and returns the text of the first choice.
func (a *Analyst) complete(ctx context.Context, op, prompt string) (string, error) {
	var text string
	operation := func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		resp, err := a.completer.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model:       a.cfg.Model,
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			if transient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return backoff.Permanent(fmt.Errorf("%w: empty completion", model.ErrParseFailure))
		}
		text = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = a.cfg.MaxRetryElapsed
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	a.metrics.ObserveUpstream("analysis", op, err)
	if err != nil {
		a.logger.Warn().Err(err).Str("operation", op).Msg("completion failed")
		if errors.Is(err, model.ErrParseFailure) {
			return "", fmt.Errorf("%s completion: %w", op, err)
		}
		return "", fmt.Errorf("%w: %s completion: %w", model.ErrDataUnavailable, op, err)
	}
	return text, nil
}

// transient reports whether a completion error is worth retrying.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
