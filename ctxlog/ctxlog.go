// Package ctxlog passes a slog.Logger through context.Context so steps
// can emit structured trace records without threading a logger argument.
// Logging is best effort and never affects control flow.
package ctxlog

import (
	"context"
	"io"
	"log/slog"
)

type key struct{}

var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From extracts the logger from a context, falling back to the default
// global logger when none was embedded.
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// New creates a logger writing to w with the given level and format
// ("json" or text). It does not touch the global logger.
func New(level, format string, w io.Writer) *slog.Logger {
	var leveler slog.Level
	switch level {
	case "debug":
		leveler = slog.LevelDebug
	case "warn":
		leveler = slog.LevelWarn
	case "error":
		leveler = slog.LevelError
	default:
		leveler = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: leveler}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
