package util

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a text logger at debug level for development and a
// JSON logger at info level for every other environment.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(env, os.Stdout)
}

func NewLoggerTo(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	switch env {
	case "development":
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(w, opts))
	case "test":
		opts.Level = slog.LevelWarn
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(slog.NewJSONHandler(w, opts))
	}
}

// DiscardLogger is used by tests and tools that must not write log output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
