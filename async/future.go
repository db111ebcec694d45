package async

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Thenable is the capability of a value that settles once, later.
//
// ThenAny registers continuations for fulfilment and rejection and returns a
// new Thenable of the same concrete type that settles with whatever the
// continuation returned.
type Thenable interface {
	ThenAny(onFulfilled func(any) (any, error), onRejected func(error) (any, error)) Thenable
}

// Future is a single-resolution deferred value.
type Future[T any] struct {
	mu        sync.Mutex
	settled   bool
	value     T
	err       error
	done      chan struct{}
	callbacks []func(T, error)

	// abandon withdraws the request behind a pending future, when its
	// producer supports it.
	abandon func() bool
}

var _ Thenable = &Future[int]{}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// NewPromise returns a pending future with the functions that settle it.
// Only the first call to either function has an effect.
func NewPromise[T any]() (*Future[T], func(T), func(error)) {
	f := newFuture[T]()
	return f, func(v T) { f.settle(v, nil) }, func(err error) {
		var zero T
		f.settle(zero, err)
	}
}

// Go runs fn on a new goroutine and returns a future for its outcome.
// A panic in fn rejects the future.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.settle(zero, errors.Errorf("async: panic in future: %v", r))
				return
			}
			f.settle(v, err)
		}()
		v, err = fn()
	}()
	return f
}

// Resolved returns a future already fulfilled with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.settle(v, nil)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.settle(zero, err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
}

// onSettle runs cb once the future settles, inline if it already has.
func (f *Future[T]) onSettle(cb func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Abandon tells the producer that nobody waits for f any more. It reports
// whether the request was withdrawn; false means f has settled or is about to,
// and its outcome should still be read. Futures whose producer cannot
// withdraw always report true.
func (f *Future[T]) Abandon() bool {
	if f.abandon == nil {
		return true
	}
	return f.abandon()
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then returns a future settled by onFulfilled or onRejected. A nil
// continuation passes the outcome through.
func (f *Future[T]) Then(onFulfilled func(T) (T, error), onRejected func(error) (T, error)) *Future[T] {
	next := newFuture[T]()
	next.abandon = f.abandon
	f.onSettle(func(v T, err error) {
		switch {
		case err == nil && onFulfilled != nil:
			next.settle(onFulfilled(v))
		case err != nil && onRejected != nil:
			next.settle(onRejected(err))
		default:
			next.settle(v, err)
		}
	})
	return next
}

// ThenAny implements Thenable. Values returned by the continuations must be
// assignable to T; nil becomes the zero value.
func (f *Future[T]) ThenAny(onFulfilled func(any) (any, error), onRejected func(error) (any, error)) Thenable {
	var fulfilled func(T) (T, error)
	if onFulfilled != nil {
		fulfilled = func(v T) (T, error) { return fromAny[T](onFulfilled(v)) }
	}
	var rejected func(error) (T, error)
	if onRejected != nil {
		rejected = func(err error) (T, error) { return fromAny[T](onRejected(err)) }
	}
	return f.Then(fulfilled, rejected)
}

func fromAny[T any](v any, err error) (T, error) {
	if v == nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.Errorf("async: continuation returned %T, want %T", v, zero)
	}
	return t, err
}

// Adopt converts any Thenable into a *Future[T] that settles with its outcome.
func Adopt[T any](th Thenable) *Future[T] {
	if f, ok := th.(*Future[T]); ok {
		return f
	}
	f := newFuture[T]()
	if a, ok := th.(interface{ Abandon() bool }); ok {
		f.abandon = a.Abandon
	}
	th.ThenAny(
		func(v any) (any, error) {
			f.settle(fromAny[T](v, nil))
			return v, nil
		},
		func(err error) (any, error) {
			var zero T
			f.settle(zero, err)
			return nil, err
		},
	)
	return f
}
