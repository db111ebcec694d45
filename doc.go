// Package spanwrap wraps a call so that an observer learns, exactly once, when
// the call's result has truly finished: immediately for plain values, on
// settlement for futures, and on exhaustion or failure for synchronous and
// asynchronous sequences.
//
// Results keep their exact type. A wrapped iter.Seq is still an iter.Seq of
// the same named type and a wrapped *async.Future[T] is still a
// *async.Future[T].
//
// A sequence the consumer stops early, or a future nobody settles, never
// reports completion. No timeout is applied.
//
// Package instrument builds tracing spans on top of this.
package spanwrap
