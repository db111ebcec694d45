package spanwrap

import (
	"reflect"

	"github.com/u-ctf/spanwrap/async"
)

// Invocation is one call to a wrapped callable.
//
// When Receiver is valid it is passed as the first argument, which is the
// calling convention of method expressions. For variadic callables the last
// element of Args is the variadic slice.
type Invocation struct {
	Callable reflect.Value
	Receiver reflect.Value
	Args     []reflect.Value

	// Unadapted, when set, is told about a result whose declared type cannot
	// hold the adapted value, such as a struct embedding *async.Stream[T].
	// Such a result is returned as is and completes immediately.
	Unadapted func(shape Shape, declared reflect.Type)
}

func (inv Invocation) call() []reflect.Value {
	args := inv.Args
	if inv.Receiver.IsValid() {
		args = append([]reflect.Value{inv.Receiver}, args...)
	}
	if inv.Callable.Type().IsVariadic() {
		return inv.Callable.CallSlice(args)
	}
	return inv.Callable.Call(args)
}

// Wrap performs inv and arranges for done to be called exactly once, at the
// true end of the result's lifecycle.
//
// A panic, or a non-nil trailing error result, completes immediately with
// that error; the panic is re-raised and the results are returned untouched.
// Otherwise the raw result is classified and replaced by a value of the same
// type that reports its terminal event to done.
//
// A callable that ends its goroutine with runtime.Goexit completes with
// ErrGoexit.
func Wrap(inv Invocation, done Completion) []reflect.Value {
	done = Once(done)

	returned := false
	defer func() {
		if returned {
			return
		}
		if r := recover(); r != nil {
			done(FromPanic(r))
			panic(r)
		}
		done(ErrGoexit)
	}()

	results := inv.call()
	returned = true

	fnType := inv.Callable.Type()
	if err := trailingError(fnType, results); err != nil {
		done(err)
		return results
	}

	idx := rawResultIndex(fnType)
	if idx < 0 {
		done(nil)
		return results
	}
	results[idx] = inv.adapt(results[idx], done)
	return results
}

func trailingError(fnType reflect.Type, results []reflect.Value) error {
	n := fnType.NumOut()
	if n == 0 || fnType.Out(n-1) != errorType || results[n-1].IsNil() {
		return nil
	}
	return results[n-1].Interface().(error)
}

// rawResultIndex returns the index of the result to classify: the only
// result, or the first of a (value, error) pair.
func rawResultIndex(fnType reflect.Type) int {
	switch {
	case fnType.NumOut() == 1 && fnType.Out(0) != errorType:
		return 0
	case fnType.NumOut() == 2 && fnType.Out(1) == errorType:
		return 0
	}
	return -1
}

func (inv Invocation) adapt(raw reflect.Value, done Completion) reflect.Value {
	shape := classifyValue(raw)

	var adapted reflect.Value
	switch shape {
	case ShapeSequence:
		adapted = adaptSeqValue(concrete(raw), done)
	case ShapeAsyncSequence:
		s := concrete(raw).Interface().(async.AsyncIterable)
		adapted = reflect.ValueOf(AdaptStream(s, done))
	case ShapeFuture:
		// The continuations are attached to the original future, so it
		// completes even when the adapted one cannot be returned.
		f := concrete(raw).Interface().(async.Thenable)
		if out, ok := retype(raw, reflect.ValueOf(AdaptFuture(f, done))); ok {
			return out
		}
		return raw
	default:
		done(nil)
		return raw
	}

	if out, ok := retype(raw, adapted); ok {
		return out
	}
	if inv.Unadapted != nil {
		inv.Unadapted(shape, raw.Type())
	}
	done(nil)
	return raw
}

// retype stores v in a value of raw's declared type. It reports false when v
// cannot be assigned, for instance when Derive returned a *async.Stream[T]
// for a type that only embeds one.
func retype(raw, v reflect.Value) (reflect.Value, bool) {
	if !v.Type().AssignableTo(raw.Type()) {
		return raw, false
	}
	out := reflect.New(raw.Type()).Elem()
	out.Set(v)
	return out, true
}
