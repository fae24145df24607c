package http

import (
	"context"
	"log/slog"

	"github.com/example/cohort-bot/internal/logging"
)

type contextKey string

const (
	activityContextKey contextKey = "activity"
	userIDContextKey   contextKey = "user_id"
)

// ContextWithActivity injects the activity resolved from the request path.
func ContextWithActivity(ctx context.Context, activity string) context.Context {
	return context.WithValue(ctx, activityContextKey, activity)
}

// ActivityFromContext extracts an activity previously associated with the context.
func ActivityFromContext(ctx context.Context) (string, bool) {
	activity, ok := ctx.Value(activityContextKey).(string)
	return activity, ok
}

// ContextWithUserID injects the chat user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// handlerLogger tags the request logger with the handler and operation names.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handler, operation string, attrs ...any) *slog.Logger {
	return logging.OrDefault(ctx, fallback).With(append([]any{"handler", handler, "operation", operation}, attrs...)...)
}
