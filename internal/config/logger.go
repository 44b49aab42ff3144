package config

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. JSON in production, text elsewhere.
// level overrides the environment default when it names a slog level.
func NewLogger(env, level string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		AddSource: env == "development",
	}

	if env == "production" {
		opts.Level = slog.LevelInfo
	} else {
		opts.Level = slog.LevelDebug
	}

	var parsed slog.Level
	if level != "" && parsed.UnmarshalText([]byte(strings.ToUpper(level))) == nil {
		opts.Level = parsed
	}

	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(slog.String("service", "guardian"))
}
