package instrument

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/u-ctf/spanwrap"
)

// Trace runs fn in a span named spanName. The error returned by fn, or the
// panic it raised, fails the span and is passed on unchanged. A fn that calls
// runtime.Goexit fails the span with spanwrap.ErrGoexit.
func Trace(ctx context.Context, inst Instrumenter, spanName string, fn func(ctx context.Context) error, opts ...trace.SpanStartOption) (err error) {
	ctx, span := inst.StartSpan(ctx, spanName, opts...)
	logger := inst.NewLogger(ctx).WithValues("span", spanName)

	returned := false
	defer func() {
		if !returned {
			if r := recover(); r != nil {
				endSpan(span, spanwrap.FromPanic(r))
				panic(r)
			}
			err = spanwrap.ErrGoexit
		}
		endSpan(span, err)
		if err != nil {
			logger.Error(err, "Traced operation failed")
		}
	}()

	err = fn(ctx)
	returned = true
	return err
}
