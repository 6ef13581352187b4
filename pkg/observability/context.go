package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	requestIDCtxKey     contextKey = "request_id"
	actorIDCtxKey       contextKey = "actor_id"
)

// Standard attribute keys used in logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	ActorIDKey       = "actor_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
)

// WithCorrelationID ties work to one logical operation across services.
// An empty id starts a new chain.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDCtxKey, orNewID(id))
}

func CorrelationIDFromContext(ctx context.Context) string { return stringValue(ctx, correlationIDCtxKey) }

// WithRequestID tags one inbound HTTP request. An empty id generates one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, orNewID(id))
}

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDCtxKey) }

// WithActorID records who triggered the work: a user id, "scheduler", "cli".
func WithActorID(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorIDCtxKey, actor)
}

func ActorIDFromContext(ctx context.Context) string { return stringValue(ctx, actorIDCtxKey) }

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// NewRequestContext creates a context with a new request ID and the given
// correlation ID, generating one when empty.
func NewRequestContext(ctx context.Context, parentCorrelationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), parentCorrelationID)
}

// CorrelationUUID returns the context correlation id as a UUID, or uuid.Nil
// when it is absent or not a UUID.
func CorrelationUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(CorrelationIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
