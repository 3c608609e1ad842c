package util

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: human-readable text at debug
// level in development, JSON at info level everywhere else. Every line
// carries the service name so aggregated logs stay attributable.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler

	if env == "development" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return slog.New(handler).With("service", "auditbench")
}
