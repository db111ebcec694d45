package instrument

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NilTracer hands out non-recording spans and leaves the context untouched.
type NilTracer struct{}

var _ Tracer = &NilTracer{}

func (nt *NilTracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}
