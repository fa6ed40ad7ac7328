package observability

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	traceIDKey
)

// ContextWithCorrelationID stores a correlation ID in ctx. It only ever
// appears in log fields.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// EnsureCorrelationID returns ctx with a correlation ID, generating a new
// UUID when none is present.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return ContextWithCorrelationID(ctx, id), id
}

// ContextWithTraceID stores a trace ID in ctx for logging.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// ContextWithSpanIDs copies the trace ID of a recording span into ctx.
func ContextWithSpanIDs(ctx context.Context, span trace.Span) context.Context {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return ContextWithTraceID(ctx, sc.TraceID().String())
	}
	return ctx
}

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if id := CorrelationIDFromContext(ctx); id != "" {
		fields = append(fields, String("correlation_id", id))
	}
	if id := TraceIDFromContext(ctx); id != "" {
		fields = append(fields, String("trace_id", id))
	}
	return fields
}
