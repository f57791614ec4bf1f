//go:build windows

package device

import (
	"fmt"

	"github.com/xsjk/go-asio"
)

// ASIOMono exposes one input and one output channel of an ASIO driver.
type ASIOMono struct {
	DeviceName string
	SampleRate float64
	InChannel  int
	OutChannel int
	device     asio.Device
}

func (a *ASIOMono) Start(callback func([]int32, []int32)) error {
	if err := a.device.Load(a.DeviceName); err != nil {
		return fmt.Errorf("%w: asio driver %q: %w", ErrOpen, a.DeviceName, err)
	}
	if err := a.device.SetSampleRate(a.SampleRate); err != nil {
		a.device.Unload()
		return fmt.Errorf("%w: asio sample rate %v: %w", ErrOpen, a.SampleRate, err)
	}
	if err := a.device.Open(); err != nil {
		a.device.Unload()
		return fmt.Errorf("%w: asio open: %w", ErrOpen, err)
	}
	err := a.device.Start(func(in, out [][]int32) {
		callback(in[a.InChannel], out[a.OutChannel])
	})
	if err != nil {
		a.device.Close()
		a.device.Unload()
		return fmt.Errorf("%w: asio start: %w", ErrOpen, err)
	}
	return nil
}

func (a *ASIOMono) Stop() {
	a.device.Stop()
	a.device.Close()
	a.device.Unload()
}
