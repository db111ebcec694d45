package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-logr/logr"
)

// NewSentryLoggerFunc returns loggers that also leave a breadcrumb for every
// info line, and capture every error, on the Sentry hub of the context.
// Combined with SentryTracer, invocation logs end up attached to the span's
// hub.
func NewSentryLoggerFunc(logger logr.Logger) func(ctx context.Context) logr.Logger {
	return func(ctx context.Context) logr.Logger {
		return logger.WithSink(NewSentrySink(ctx, logger.GetSink()))
	}
}

type sentrySink struct {
	context.Context
	logr.LogSink

	name   string
	values map[string]any
}

var _ logr.LogSink = &sentrySink{}

func NewSentrySink(ctx context.Context, logSink logr.LogSink) *sentrySink {
	return &sentrySink{
		Context: ctx,
		LogSink: logSink,
		values:  make(map[string]any),
	}
}

func keysAndValuesToMap(keysAndValues ...any) map[string]any {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, "unknown")
	}

	m := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		m[fmt.Sprint(keysAndValues[i])] = fmt.Sprint(keysAndValues[i+1])
	}
	return m
}

// withValues merges keysAndValues over the values already attached to s.
func (s *sentrySink) withValues(keysAndValues ...any) map[string]any {
	m := keysAndValuesToMap(keysAndValues...)
	for k, v := range s.values {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

func (s *sentrySink) category() string {
	if s.name == "" {
		return "log"
	}
	return s.name
}

func (s *sentrySink) Init(info logr.RuntimeInfo) {
	if s.LogSink != nil {
		s.LogSink.Init(info)
	}
}

// Enabled defers to the wrapped sink. Without one, every level is enabled so
// that breadcrumbs are still recorded.
func (s *sentrySink) Enabled(level int) bool {
	if s.LogSink == nil {
		return true
	}
	return s.LogSink.Enabled(level)
}

func (s *sentrySink) Info(level int, msg string, keysAndValues ...any) {
	if s.LogSink != nil {
		s.LogSink.Info(level, msg, keysAndValues...)
	}

	hub := sentry.GetHubFromContext(s.Context)
	if hub == nil {
		return
	}

	data := s.withValues(keysAndValues...)

	crumbLevel := sentry.LevelInfo
	if level > 0 {
		crumbLevel = sentry.LevelDebug
	}

	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "debug",
		Category:  s.category(),
		Level:     crumbLevel,
		Message:   msg,
		Data:      data,
		Timestamp: time.Now(),
	}, nil)
}

func (s *sentrySink) Error(err error, msg string, keysAndValues ...any) {
	if s.LogSink != nil {
		s.LogSink.Error(err, msg, keysAndValues...)
	}

	hub := sentry.GetHubFromContext(s.Context)
	if hub == nil || err == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		data := s.withValues(keysAndValues...)
		scope.SetContext("log", sentry.Context{"message": msg, "values": data})
		hub.CaptureException(err)
	})
}

func (s *sentrySink) WithValues(keysAndValues ...any) logr.LogSink {
	newValues := s.withValues(keysAndValues...)

	inner := s.LogSink
	if inner != nil {
		inner = inner.WithValues(keysAndValues...)
	}

	return &sentrySink{
		Context: s.Context,
		LogSink: inner,
		name:    s.name,
		values:  newValues,
	}
}

func (s *sentrySink) WithName(name string) logr.LogSink {
	inner := s.LogSink
	if inner != nil {
		inner = inner.WithName(name)
	}

	full := name
	if s.name != "" {
		full = s.name + "." + name
	}

	return &sentrySink{
		Context: s.Context,
		LogSink: inner,
		name:    full,
		values:  s.values,
	}
}
