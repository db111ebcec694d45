package spanwrap

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeFor[error]()

// ErrGoexit is recorded when a call ends its goroutine with runtime.Goexit
// instead of returning or panicking.
var ErrGoexit = errors.New("goroutine exited before the call returned")

// Completion is called when an invocation reaches its terminal event. err is
// nil on success.
type Completion func(err error)

// Once returns a Completion that forwards only its first call to fn.
func Once(fn Completion) Completion {
	var once sync.Once
	return func(err error) {
		once.Do(func() { fn(err) })
	}
}

// PanicError carries a recovered panic value that is not itself an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// FromPanic converts a recovered panic value into the error recorded for it:
// the value itself when it is an error, a *PanicError otherwise.
func FromPanic(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}
