package services

import "context"

type contextKey string

const (
	turnIDKey    contextKey = "turn_id"
	operationKey contextKey = "operation"
	requestIDKey contextKey = "request_id"
)

// WithTurnID annotates context with the persisted turn identifier.
func WithTurnID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, turnIDKey, id)
}

// TurnIDFromContext extracts the turn identifier if present.
func TurnIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(turnIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithOperation annotates context with the routed operation name.
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFromContext returns the routed operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
