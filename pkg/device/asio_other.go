//go:build !windows

package device

import "fmt"

type ASIOMono struct {
	DeviceName string
	SampleRate float64
	InChannel  int
	OutChannel int
}

func (a *ASIOMono) Start(func([]int32, []int32)) error {
	return fmt.Errorf("%w: ASIO driver %q", ErrUnsupported, a.DeviceName)
}

func (a *ASIOMono) Stop() {}
