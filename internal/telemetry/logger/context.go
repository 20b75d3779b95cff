package logger

import "context"

// requestIDAttr is the attribute key request IDs are logged under.
const requestIDAttr = "request_id"

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id. Loggers bound to the
// returned context through WithContext log it as request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
