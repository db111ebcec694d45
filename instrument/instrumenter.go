package instrument

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the capability the instrumentation needs from a tracing backend.
// The span it starts must be the active span of the returned context.
type Tracer interface {
	StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

type Instrumenter interface {
	Tracer

	NewLogger(ctx context.Context) logr.Logger
}

type instrumenter struct {
	Tracer

	newLogger func(ctx context.Context) logr.Logger
}

var _ Instrumenter = &instrumenter{}

func (t *instrumenter) NewLogger(ctx context.Context) logr.Logger {
	return t.newLogger(ctx)
}

// endSpan closes span, recording err as an exception and an error status
// when it is non-nil.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
