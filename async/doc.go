// Package async provides the deferred-value primitives recognised by spanwrap:
// a single-resolution Future and a Stream whose steps are futures.
//
// Both expose non-generic capabilities (Thenable, AsyncIterable) so that a
// value can be recognised and observed without knowing its element type.
package async
