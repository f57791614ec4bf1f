package async

import (
	"errors"
	"time"
)

var ErrTimeout = errors.New("await timed out")

func Await[R any](a <-chan R) R {
	return <-a
}

// AwaitTimeout returns ErrTimeout if nothing arrives within d.
func AwaitTimeout[R any](a <-chan R, d time.Duration) (R, error) {
	select {
	case r := <-a:
		return r, nil
	case <-time.After(d):
		var zero R
		return zero, ErrTimeout
	}
}
