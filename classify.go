package spanwrap

import (
	"reflect"

	"github.com/u-ctf/spanwrap/async"
)

// Shape is the way a raw result reaches its terminal event.
type Shape int

const (
	// ShapeImmediate is a value that is already final.
	ShapeImmediate Shape = iota
	// ShapeFuture settles once, later.
	ShapeFuture
	// ShapeSequence produces elements synchronously, on demand.
	ShapeSequence
	// ShapeAsyncSequence produces elements through deferred steps.
	ShapeAsyncSequence
)

func (s Shape) String() string {
	switch s {
	case ShapeFuture:
		return "future"
	case ShapeSequence:
		return "sequence"
	case ShapeAsyncSequence:
		return "async-sequence"
	default:
		return "immediate"
	}
}

// Classify reports the completion shape of v. Precedence is synchronous
// sequence, asynchronous sequence, future, immediate. v is never called,
// drained or awaited.
func Classify(v any) Shape {
	return classifyValue(reflect.ValueOf(v))
}

func classifyValue(rv reflect.Value) Shape {
	rv = concrete(rv)
	if !rv.IsValid() || isNil(rv) {
		return ShapeImmediate
	}
	if seqArity(rv.Type()) >= 0 {
		return ShapeSequence
	}
	if !rv.CanInterface() {
		return ShapeImmediate
	}
	switch rv.Interface().(type) {
	case async.AsyncIterable:
		return ShapeAsyncSequence
	case async.Thenable:
		return ShapeFuture
	}
	return ShapeImmediate
}

// seqArity returns the number of values yielded per step when t has the shape
// of a range-over-func iterator, or -1.
func seqArity(t reflect.Type) int {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 || t.IsVariadic() {
		return -1
	}
	y := t.In(0)
	if y.Kind() != reflect.Func || y.IsVariadic() || y.NumOut() != 1 || y.Out(0).Kind() != reflect.Bool {
		return -1
	}
	if y.NumIn() > 2 {
		return -1
	}
	return y.NumIn()
}

func concrete(rv reflect.Value) reflect.Value {
	if rv.IsValid() && rv.Kind() == reflect.Interface && !rv.IsNil() {
		return rv.Elem()
	}
	return rv
}

func isNil(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer, reflect.Interface, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
