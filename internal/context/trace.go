package context

import (
	stdcontext "context"

	"github.com/google/uuid"
)

// TraceContext carries only cross-cutting concerns needed for observability.
type TraceContext struct {
	TraceID string            // Globally unique ID for logs and spans
	SpanID  string            // Current span identifier
	Baggage map[string]string // Optional key-value flags (e.g., buy order, token)
}

type traceKey struct{}

// NewTraceContext creates a new TraceContext with a unique TraceID and an initial SpanID.
func NewTraceContext() TraceContext {
	return TraceContext{
		TraceID: uuid.NewString(),
		SpanID:  uuid.NewString(),
		Baggage: make(map[string]string),
	}
}

// NewSpan generates a new SpanID for a child operation within the same trace.
func (tc *TraceContext) NewSpan() string {
	tc.SpanID = uuid.NewString()
	return tc.SpanID
}

// WithTrace stores tc in ctx.
func WithTrace(ctx stdcontext.Context, tc TraceContext) stdcontext.Context {
	return stdcontext.WithValue(ctx, traceKey{}, tc)
}

// TraceFrom returns the TraceContext stored in ctx, creating a fresh one when
// ctx carries none.
func TraceFrom(ctx stdcontext.Context) TraceContext {
	if ctx != nil {
		if tc, ok := ctx.Value(traceKey{}).(TraceContext); ok {
			return tc
		}
	}
	return NewTraceContext()
}
