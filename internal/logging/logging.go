// Package logging configures the process-wide structured logger and
// carries benchmark identifiers through context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a type for context keys
type contextKey string

const (
	// RunIDKey is the context key for the benchmark run ID
	RunIDKey contextKey = "run_id"
	// RequestIndexKey is the context key for the request index
	RequestIndexKey contextKey = "request_index"
)

// Config holds logging configuration
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	Output io.Writer
}

// Setup configures the global logger
func Setup(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	handler = &ContextHandler{Handler: handler}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// ContextHandler adds context values to log records
type ContextHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing to the wrapped handler
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	if index, ok := ctx.Value(RequestIndexKey).(int); ok {
		r.AddAttrs(slog.Int("request_index", index))
	}
	return h.Handler.Handle(ctx, r)
}

// WithRunID adds a benchmark run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithRequestIndex adds a request index to the context
func WithRequestIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, RequestIndexKey, index)
}
