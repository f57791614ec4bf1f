package device

import (
	"math"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/exp/rand"
)

func TestLoopback(t *testing.T) {

	lastOutput := alloci32(BufferSize)

	var dev Device = &Loopback{
		SampleRate: 48000,
	}

	var calls atomic.Int32
	err := dev.Start(func(in, out []int32) {
		if !reflect.DeepEqual(in, lastOutput) {
			t.Errorf("Expected %v, but got %v", lastOutput[0], in[0])
		}

		randi32(out)
		copy(lastOutput, out)
		calls.Add(1)
	})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	dev.Stop()

	// 50ms of 512 sample buffers at 48kHz is roughly 4.7 ticks
	if n := calls.Load(); n < 1 || n > 10 {
		t.Errorf("Expected a handful of callbacks, got %d", n)
	}
}

func TestLoopbackNoise(t *testing.T) {
	dev := &Loopback{NoiseAmplitude: 0.01, Seed: 1}

	var peak atomic.Int64
	var calls atomic.Int32
	err := dev.Start(func(in, out []int32) {
		for _, v := range in {
			if a := int64(math.Abs(float64(v))); a > peak.Load() {
				peak.Store(a)
			}
		}
		cleari32(out)
		calls.Add(1)
	})
	if err != nil {
		t.Fatal(err)
	}
	for calls.Load() < 10 {
		time.Sleep(time.Millisecond)
	}
	dev.Stop()

	limit := int64(math.Round(0.01 * math.MaxInt32))
	if p := peak.Load(); p == 0 || p > limit {
		t.Errorf("Expected noise peak in (0, %d], got %d", limit, p)
	}
}

func TestSaturate(t *testing.T) {
	a := []int32{0x7fffffff, -0x80000000, 5}
	b := []int32{1, -1, -7}
	c := make([]int32, 3)
	sumi32(a, b, c)
	if !reflect.DeepEqual(c, []int32{0x7fffffff, -0x80000000, -2}) {
		t.Errorf("Expected saturated sums, got %v", c)
	}
}

func randi32(a []int32) {
	for i := range a {
		a[i] = rand.Int31()
	}
}
