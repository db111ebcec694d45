package spanwrap

import (
	"iter"
	"reflect"
)

// seqRun tracks one drive of a wrapped sequence.
type seqRun struct {
	done    Completion
	stopped bool
	inYield bool
}

// step hands one element to the consumer. failure is non-nil when the element
// carries the sequence's error; the sequence stops after it.
func (r *seqRun) step(failure error, yield func() bool) bool {
	if r.stopped {
		return false
	}
	if failure != nil {
		r.stopped = true
		r.done(failure)
		r.inYield = true
		yield()
		r.inYield = false
		return false
	}

	r.inYield = true
	ok := yield()
	r.inYield = false
	if !ok {
		r.stopped = true
	}
	return ok
}

// drive runs the producer to its end. Exhaustion completes with no error, a
// producer panic completes with that panic before it is re-raised. A consumer
// that stops early, or panics in its loop body, leaves done uncalled.
func (r *seqRun) drive(produce func()) {
	finished := false
	defer func() {
		if finished {
			return
		}
		if rec := recover(); rec != nil {
			if !r.inYield && !r.stopped {
				r.done(FromPanic(rec))
			}
			panic(rec)
		}
	}()

	produce()
	finished = true
	if !r.stopped {
		r.done(nil)
	}
}

// AdaptSeq returns a sequence yielding exactly what seq yields, calling done
// once seq is exhausted or panics.
func AdaptSeq[T any](seq iter.Seq[T], done Completion) iter.Seq[T] {
	done = Once(done)
	return func(yield func(T) bool) {
		r := &seqRun{done: done}
		r.drive(func() {
			seq(func(v T) bool {
				return r.step(nil, func() bool { return yield(v) })
			})
		})
	}
}

// AdaptSeq2 is AdaptSeq for pairs. When V is error, a pair with a non-nil
// error fails the sequence: the pair is forwarded and iteration stops.
func AdaptSeq2[K, V any](seq iter.Seq2[K, V], done Completion) iter.Seq2[K, V] {
	done = Once(done)
	errorValued := reflect.TypeFor[V]() == errorType
	return func(yield func(K, V) bool) {
		r := &seqRun{done: done}
		r.drive(func() {
			seq(func(k K, v V) bool {
				var failure error
				if errorValued {
					failure, _ = any(v).(error)
				}
				return r.step(failure, func() bool { return yield(k, v) })
			})
		})
	}
}

// adaptSeqValue is AdaptSeq for an arbitrary iterator func type, preserving
// that exact type.
func adaptSeqValue(seq reflect.Value, done Completion) reflect.Value {
	seqType := seq.Type()
	yieldType := seqType.In(0)
	errIndex := -1
	if yieldType.NumIn() == 2 && yieldType.In(1) == errorType {
		errIndex = 1
	}
	done = Once(done)

	return reflect.MakeFunc(seqType, func(args []reflect.Value) []reflect.Value {
		yield := args[0]
		r := &seqRun{done: done}

		wrapped := reflect.MakeFunc(yieldType, func(vals []reflect.Value) []reflect.Value {
			var failure error
			if errIndex >= 0 && !vals[errIndex].IsNil() {
				failure = vals[errIndex].Interface().(error)
			}
			ok := r.step(failure, func() bool {
				return yield.Call(vals)[0].Bool()
			})
			return []reflect.Value{reflect.ValueOf(ok).Convert(yieldType.Out(0))}
		})

		r.drive(func() {
			seq.Call([]reflect.Value{wrapped})
		})
		return nil
	})
}
