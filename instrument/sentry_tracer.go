package instrument

import (
	"context"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

// defaultSentryOp is used when no code.op attribute is given.
const defaultSentryOp = "function"

// SentryTracer records spans as Sentry transactions and child spans. A hub is
// cloned from the current one when the context carries none.
type SentryTracer struct{}

var _ Tracer = &SentryTracer{}

func NewSentryTracer() *SentryTracer {
	return &SentryTracer{}
}

func (t *SentryTracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
		ctx = sentry.SetHubOnContext(ctx, hub)
	}

	cfg := trace.NewSpanStartConfig(opts...)
	op := defaultSentryOp
	for _, kv := range cfg.Attributes() {
		if kv.Key == AttributeCodeOp {
			op = kv.Value.AsString()
		}
	}

	var span *sentry.Span
	if sentry.SpanFromContext(ctx) == nil {
		span = sentry.StartTransaction(ctx, spanName, sentry.WithOpName(op))
	} else {
		span = sentry.StartSpan(ctx, op, sentry.WithDescription(spanName))
	}

	s := &sentrySpan{span: span, hub: hub}
	s.SetAttributes(cfg.Attributes()...)
	return span.Context(), s
}

// sentrySpan exposes a Sentry span through the OpenTelemetry span API.
type sentrySpan struct {
	embedded.Span

	span *sentry.Span
	hub  *sentry.Hub
}

var _ trace.Span = &sentrySpan{}

func (s *sentrySpan) End(options ...trace.SpanEndOption) {
	s.span.Finish()
}

func (s *sentrySpan) AddEvent(name string, options ...trace.EventOption) {
	cfg := trace.NewEventConfig(options...)
	s.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  "span.event",
		Message:   name,
		Level:     sentry.LevelInfo,
		Data:      attributesToMap(cfg.Attributes()),
		Timestamp: cfg.Timestamp(),
	}, nil)
}

func (s *sentrySpan) AddLink(link trace.Link) {}

func (s *sentrySpan) IsRecording() bool {
	return s.span.EndTime.IsZero()
}

func (s *sentrySpan) RecordError(err error, options ...trace.EventOption) {
	s.hub.CaptureException(err)
}

func (s *sentrySpan) SpanContext() trace.SpanContext {
	var flags trace.TraceFlags
	if s.span.Sampled.Bool() {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID(s.span.TraceID),
		SpanID:     trace.SpanID(s.span.SpanID),
		TraceFlags: flags,
	})
}

func (s *sentrySpan) SetStatus(code codes.Code, description string) {
	switch code {
	case codes.Error:
		s.span.Status = sentry.SpanStatusInternalError
	case codes.Ok:
		s.span.Status = sentry.SpanStatusOK
	}
	if description != "" {
		s.span.SetData("status.message", description)
	}
}

func (s *sentrySpan) SetName(name string) {
	if s.span.IsTransaction() {
		s.span.Name = name
		return
	}
	s.span.Description = name
}

func (s *sentrySpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.span.SetData(string(a.Key), a.Value.AsInterface())
	}
}

func (s *sentrySpan) TracerProvider() trace.TracerProvider {
	return noop.NewTracerProvider()
}

func attributesToMap(kv []attribute.KeyValue) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]any, len(kv))
	for _, a := range kv {
		m[string(a.Key)] = a.Value.AsInterface()
	}
	return m
}
