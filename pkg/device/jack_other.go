//go:build !cgo || windows

package device

import "fmt"

type JACK struct {
	ClientName   string
	CapturePort  string
	PlaybackPort string
}

func (j *JACK) Start(func([]int32, []int32)) error {
	return fmt.Errorf("%w: JACK client %q needs cgo", ErrUnsupported, j.ClientName)
}

func (j *JACK) Stop() {}
