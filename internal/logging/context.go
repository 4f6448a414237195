package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	runIDKey contextKey = "run_id"
	dateKey  contextKey = "date"
)

// WithRunID tags the context with the pipeline run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithDate tags the context with the target processing date.
func WithDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, dateKey, date)
}

// WithContext returns a logger enriched with whatever pipeline identifiers
// the context carries. Safe on a nil logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if ctx == nil {
		return logger
	}
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		logger = logger.With(String(FieldRunID, runID))
	}
	if date, ok := ctx.Value(dateKey).(string); ok && date != "" {
		logger = logger.With(String(FieldDate, date))
	}
	return logger
}
