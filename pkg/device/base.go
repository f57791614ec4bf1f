// Package device drives audio hardware and simulated channels through a
// single callback that receives one buffer of captured samples and fills one
// buffer of samples to play. Samples are int32 full scale.
package device

import (
	"errors"
	"time"
)

type Device interface {
	Start(callback func(in, out []int32)) error
	Stop()
}

const BufferSize = 512

var (
	ErrUnsupported = errors.New("device not supported on this platform")
	ErrOpen        = errors.New("failed to open device")
)

// tickPeriod is the wall clock length of one buffer at sampleRate.
func tickPeriod(sampleRate float64) time.Duration {
	return time.Duration(float64(time.Second) * BufferSize / sampleRate)
}
