package instrument

import (
	"context"

	"github.com/go-logr/logr"
)

type instrumenterBuilder struct {
	tracer    Tracer
	newLogger func(ctx context.Context) logr.Logger
}

func NewInstrumenter() *instrumenterBuilder {
	return &instrumenterBuilder{
		tracer: &NilTracer{},
		newLogger: func(ctx context.Context) logr.Logger {
			return logr.Discard()
		},
	}
}

func (b *instrumenterBuilder) WithTracer(t Tracer) *instrumenterBuilder {
	b.tracer = t
	return b
}

func (b *instrumenterBuilder) WithLoggerFunc(l func(ctx context.Context) logr.Logger) *instrumenterBuilder {
	b.newLogger = l
	return b
}

func (b *instrumenterBuilder) Build() Instrumenter {
	return &instrumenter{
		Tracer:    b.tracer,
		newLogger: b.newLogger,
	}
}
