// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// every producer and consumer of a request-scoped value can be found from
// one place.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithActor(ctx, actorCtx)
//	actorCtx, ok := contextkeys.GetActor(ctx)
package contextkeys

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains *auth.ActorContext
	// Set by: middleware.ActorContextMiddleware (pkg/middleware/actor.go)
	// Required by: every organization and secrets manager endpoint
	ActorKey Key = "actor_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains logrus.FieldLogger
	// Set by: middleware.RequestID
	// Used by: Handlers that need structured logging with request context
	LoggerKey Key = "logger"

	// RequestStartTimeKey contains request start timestamp
	// Set by: middleware.RequestID
	RequestStartTimeKey Key = "request_start_time"
)

// WithActor adds the actor capability snapshot to the context
func WithActor(ctx context.Context, ac *auth.ActorContext) context.Context {
	return context.WithValue(ctx, ActorKey, ac)
}

// GetActor retrieves the actor capability snapshot from context
func GetActor(ctx context.Context) (*auth.ActorContext, bool) {
	ac, ok := ctx.Value(ActorKey).(*auth.ActorContext)
	return ac, ok && ac != nil
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger retrieves the request logger, falling back to the standard logger
func GetLogger(ctx context.Context) logrus.FieldLogger {
	if logger, ok := ctx.Value(LoggerKey).(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestStartTime retrieves request start time from context
func GetRequestStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(RequestStartTimeKey).(time.Time)
	return t, ok
}
