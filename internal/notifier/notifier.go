package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers formatted messages to the operator.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log. Used when Telegram is not configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.logger.Info().Msg(text)
	return nil
}
