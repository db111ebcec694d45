package tracing

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/u-ctf/spanwrap/instrument"
)

// sentryFlushTimeout bounds Shutdown when its context has no deadline.
const sentryFlushTimeout = 2 * time.Second

// Provider owns the tracing backend selected by a Config.
type Provider struct {
	Tracer instrument.Tracer

	backend  string
	shutdown func(ctx context.Context) error
}

type setupOptions struct {
	writer    io.Writer
	setGlobal bool
	exporter  sdktrace.SpanExporter
}

type SetupOption func(*setupOptions)

// WithWriter sets where the stdout exporter prints spans. Defaults to
// os.Stdout.
func WithWriter(w io.Writer) SetupOption {
	return func(o *setupOptions) {
		o.writer = w
	}
}

// WithoutGlobal keeps the tracer provider and propagator out of the otel
// globals.
func WithoutGlobal() SetupOption {
	return func(o *setupOptions) {
		o.setGlobal = false
	}
}

// WithExporter overrides the exporter chosen by Config.Exporter.
func WithExporter(exporter sdktrace.SpanExporter) SetupOption {
	return func(o *setupOptions) {
		o.exporter = exporter
	}
}

// Setup initialises the backend described by cfg. The returned Provider must
// be shut down to flush pending spans.
func Setup(ctx context.Context, cfg Config, opts ...SetupOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := setupOptions{writer: os.Stdout, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Backend {
	case BackendOtel:
		return setupOtel(ctx, cfg, o)
	case BackendSentry:
		return setupSentry(cfg)
	default:
		return &Provider{
			Tracer:   &instrument.NilTracer{},
			backend:  BackendNone,
			shutdown: func(context.Context) error { return nil },
		}, nil
	}
}

func setupOtel(ctx context.Context, cfg Config, o setupOptions) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	exporter := o.exporter
	if exporter == nil {
		exporter, err = newExporter(ctx, cfg, o.writer)
		if err != nil {
			return nil, err
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	if o.setGlobal {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return &Provider{
		Tracer:   instrument.NewOtelTracer(tp.Tracer(cfg.ServiceName)),
		backend:  BackendOtel,
		shutdown: tp.Shutdown,
	}, nil
}

func newExporter(ctx context.Context, cfg Config, w io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, errors.Wrap(err, "failed to create stdout exporter")
		}
		return exporter, nil
	case ExporterOTLP:
		var opts []otlptracegrpc.Option
		if strings.Contains(cfg.Endpoint, "://") {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create otlp exporter")
		}
		return exporter, nil
	default:
		return nil, nil
	}
}

func setupSentry(cfg Config) (*Provider, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Debug:            cfg.Debug,
		Environment:      cfg.Environment,
		SendDefaultPII:   true,
		EnableTracing:    true,
		TracesSampleRate: cfg.SampleRate,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise sentry")
	}

	return &Provider{
		Tracer:  instrument.NewSentryTracer(),
		backend: BackendSentry,
		shutdown: func(ctx context.Context) error {
			timeout := sentryFlushTimeout
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
			if !sentry.Flush(timeout) {
				return errors.New("timed out flushing sentry events")
			}
			return nil
		},
	}, nil
}

// Instrumenter builds an instrument.Instrumenter on the provider's tracer.
// With the Sentry backend, logs also become breadcrumbs on the span's hub.
func (p *Provider) Instrumenter(logger logr.Logger) instrument.Instrumenter {
	loggerFunc := instrument.NewContextLoggerFunc(logger)
	if p.backend == BackendSentry {
		loggerFunc = instrument.NewSentryLoggerFunc(logger)
	}

	return instrument.NewInstrumenter().
		WithTracer(p.Tracer).
		WithLoggerFunc(loggerFunc).
		Build()
}

// Shutdown flushes and releases the backend.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
