package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// RunIDKey is the context key for a batch run ID
	RunIDKey contextKey = "run_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger
// if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithRunID adds a batch run ID to context and returns enriched logger.
// The batch executor tags every log line of one correction or recovery
// run with it so a run's output can be pulled out as a unit.
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RunIDKey, runID)
	enriched := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetRunID retrieves the batch run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}
