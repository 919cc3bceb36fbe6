package types

import "context"

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID returns a context carrying the trace ID used to correlate log
// lines and outbound requests across the scheduling and delivery hops.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID from the context, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}
