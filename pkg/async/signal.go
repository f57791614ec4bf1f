package async

import "sync"

// Signal is a one shot event that can be armed again after it fired.
// The zero value is ready to use.
type Signal[T any] struct {
	mu sync.Mutex
	ch chan T
}

func (s *Signal[T]) channel() chan T {
	if s.ch == nil {
		s.ch = make(chan T, 1)
	}
	return s.ch
}

// Notify fires the signal with the zero value. It reports false if the
// signal already fired.
func (s *Signal[T]) Notify() bool {
	var zero T
	return s.NotifyValue(zero)
}

func (s *Signal[T]) NotifyValue(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.channel() <- value:
		return true
	default:
		return false
	}
}

// Signal returns the channel the next notification is delivered on.
func (s *Signal[T]) Signal() <-chan T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel()
}

// Reset discards a pending notification.
func (s *Signal[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = make(chan T, 1)
}
