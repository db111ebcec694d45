package async

import (
	"io"
	"sync"
)

// FromChannel returns a stream receiving from ch. Closing ch ends the stream;
// a non-nil error received from errc fails it. errc may be nil.
//
// A single goroutine receives, and only while a step is waiting. Elements
// received for an abandoned step are kept, in order, for the next ones.
func FromChannel[T any](ch <-chan T, errc <-chan error) *Stream[T] {
	src := &channelSource[T]{
		ch:   ch,
		errc: errc,
		wake: make(chan struct{}, 1),
	}
	return NewStream(src.next)
}

type channelStep[T any] struct {
	f         *Future[T]
	withdrawn bool
	delivered bool
}

type channelSource[T any] struct {
	ch   <-chan T
	errc <-chan error

	mu      sync.Mutex
	waiting []*channelStep[T]
	held    []T
	err     error
	started bool
	wake    chan struct{}
}

func (s *channelSource[T]) next() *Future[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.held) > 0 {
		v := s.held[0]
		s.held = s.held[1:]
		return Resolved(v)
	}
	if s.err != nil {
		return Rejected[T](s.err)
	}

	step := &channelStep[T]{f: newFuture[T]()}
	step.f.abandon = func() bool { return s.withdraw(step) }
	s.waiting = append(s.waiting, step)

	if !s.started {
		s.started = true
		go s.pump()
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return step.f
}

func (s *channelSource[T]) withdraw(step *channelStep[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if step.delivered {
		return false
	}
	step.withdrawn = true
	return true
}

// live drops withdrawn steps from the head of the queue and returns the
// first step still waiting. Called with s.mu held.
func (s *channelSource[T]) live() *channelStep[T] {
	for len(s.waiting) > 0 && s.waiting[0].withdrawn {
		s.waiting = s.waiting[1:]
	}
	if len(s.waiting) == 0 {
		return nil
	}
	return s.waiting[0]
}

func (s *channelSource[T]) pump() {
	for {
		s.mu.Lock()
		for s.live() == nil {
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		s.mu.Unlock()

		v, err := s.receive()

		s.mu.Lock()
		if err != nil {
			s.err = err
			var pending []*channelStep[T]
			for _, step := range s.waiting {
				if !step.withdrawn {
					step.delivered = true
					pending = append(pending, step)
				}
			}
			s.waiting = nil
			s.mu.Unlock()

			var zero T
			for _, step := range pending {
				step.f.settle(zero, err)
			}
			return
		}

		step := s.live()
		if step == nil {
			s.held = append(s.held, v)
			s.mu.Unlock()
			continue
		}
		step.delivered = true
		s.waiting = s.waiting[1:]
		s.mu.Unlock()

		step.f.settle(v, nil)
	}
}

func (s *channelSource[T]) receive() (T, error) {
	var zero T
	for {
		select {
		case v, ok := <-s.ch:
			if !ok {
				return zero, io.EOF
			}
			return v, nil
		case err, ok := <-s.errc:
			if !ok || err == nil {
				// errc is done without a failure; keep reading values.
				s.errc = nil
				continue
			}
			return zero, err
		}
	}
}
