package device

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Loopback feeds every output buffer back as the next input buffer.
type Loopback struct {
	SampleRate     float64 // the fake sample rate, 0 means no limit
	NoiseAmplitude float64 // peak of the uniform noise added on the way back
	Seed           uint64

	done chan struct{}
	wg   sync.WaitGroup
}

func (d *Loopback) Start(callback func([]int32, []int32)) error {
	d.done = make(chan struct{})
	rng := rand.New(rand.NewSource(d.Seed))
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		var buf = make([][]int32, 2)
		buf[0] = alloci32(BufferSize)
		buf[1] = alloci32(BufferSize)

		swap := true
		update := func() {
			in, out := buf[0], buf[1]
			if !swap {
				in, out = out, in
			}
			callback(in, out)
			noisei32(out, d.NoiseAmplitude, rng)
			swap = !swap
		}

		if d.SampleRate == 0 {
			for {
				select {
				case <-d.done:
					return
				default:
					update()
				}
			}
		} else {
			ticker := time.NewTicker(tickPeriod(d.SampleRate))
			defer ticker.Stop()
			for {
				select {
				case <-d.done:
					return
				case <-ticker.C:
					update()
				}
			}
		}
	}()
	return nil
}

// Stop returns once the callback is no longer running.
func (d *Loopback) Stop() {
	close(d.done)
	d.wg.Wait()
}
