package spanwrap

import (
	"io"

	"github.com/pkg/errors"

	"github.com/u-ctf/spanwrap/async"
)

// AdaptFuture returns a future settling exactly like f, after done has
// observed the outcome.
func AdaptFuture(f async.Thenable, done Completion) async.Thenable {
	done = Once(done)
	return f.ThenAny(
		func(v any) (any, error) {
			done(nil)
			return v, nil
		},
		func(err error) (any, error) {
			done(err)
			return nil, err
		},
	)
}

// TraceFuture is AdaptFuture for a typed future.
func TraceFuture[T any](f *async.Future[T], done Completion) *async.Future[T] {
	return async.Adopt[T](AdaptFuture(f, done))
}

// AdaptStream returns a stream whose steps settle exactly like those of s.
// done runs when a step rejects: with no error on io.EOF, with the rejection
// otherwise.
func AdaptStream(s async.AsyncIterable, done Completion) async.AsyncIterable {
	done = Once(done)
	return s.Derive(func() async.Thenable {
		return s.NextThenable().ThenAny(nil, func(err error) (any, error) {
			if errors.Is(err, io.EOF) {
				done(nil)
			} else {
				done(err)
			}
			return nil, err
		})
	})
}

// TraceStream is AdaptStream for a typed stream.
func TraceStream[T any](s *async.Stream[T], done Completion) *async.Stream[T] {
	return AdaptStream(s, done).(*async.Stream[T])
}
