package async

import (
	"context"
	"io"
	"iter"

	"github.com/pkg/errors"
)

// AsyncIterable is the capability of a sequence whose steps settle later.
//
// NextThenable requests one step; the returned Thenable rejects with io.EOF
// once the sequence is exhausted. Derive returns a sequence of the same
// concrete type whose steps are produced by next.
type AsyncIterable interface {
	NextThenable() Thenable
	Derive(next func() Thenable) AsyncIterable
}

// Stream is an asynchronous sequence: each call to Next yields a future for
// the next element.
type Stream[T any] struct {
	next func() *Future[T]
}

var _ AsyncIterable = &Stream[int]{}

// NewStream builds a stream from a step function. The step function must
// return a future rejected with io.EOF once exhausted.
func NewStream[T any](next func() *Future[T]) *Stream[T] {
	return &Stream[T]{next: next}
}

// StreamOf returns a stream over already-known values.
func StreamOf[T any](values ...T) *Stream[T] {
	i := 0
	return NewStream(func() *Future[T] {
		if i >= len(values) {
			return Rejected[T](io.EOF)
		}
		v := values[i]
		i++
		return Resolved(v)
	})
}

// Next requests the next element.
func (s *Stream[T]) Next() *Future[T] {
	return s.next()
}

// Recv waits for the next element. It returns io.EOF once exhausted.
//
// When ctx is done first the step is abandoned; a stream that supports it,
// such as one from FromChannel, hands the element to the next step instead.
func (s *Stream[T]) Recv(ctx context.Context) (T, error) {
	f := s.Next()
	select {
	case <-f.Done():
	case <-ctx.Done():
		select {
		case <-f.Done():
		default:
			if f.Abandon() {
				var zero T
				return zero, ctx.Err()
			}
			<-f.Done()
		}
	}
	return f.Await(context.Background())
}

// All drains the stream step by step. Iteration stops after exhaustion or
// after the first error has been yielded.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// NextThenable implements AsyncIterable.
func (s *Stream[T]) NextThenable() Thenable {
	return s.Next()
}

// Derive implements AsyncIterable.
func (s *Stream[T]) Derive(next func() Thenable) AsyncIterable {
	return NewStream(func() *Future[T] {
		return Adopt[T](next())
	})
}
