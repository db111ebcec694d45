package instrument

import (
	"context"

	"github.com/go-logr/logr"
)

// NewLoggerFunc always hands out logger, whatever the context.
func NewLoggerFunc(logger logr.Logger) func(ctx context.Context) logr.Logger {
	return func(ctx context.Context) logr.Logger {
		return logger
	}
}

// NewContextLoggerFunc prefers a logger stored in the context with
// logr.NewContext and falls back to logger.
func NewContextLoggerFunc(logger logr.Logger) func(ctx context.Context) logr.Logger {
	return func(ctx context.Context) logr.Logger {
		if l, err := logr.FromContext(ctx); err == nil {
			return l
		}
		return logger
	}
}
