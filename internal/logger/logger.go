package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the level, encoding and destination of log output.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr, or file path
}

// New builds the root logger. Components derive children with
// With().Str("component", ...).
func New(cfg Config) (zerolog.Logger, error) {
	var out io.Writer
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		out = f
	}
	return NewWithWriter(cfg, out)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg Config, out io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
