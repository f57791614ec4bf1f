package device

import (
	"math"
	"sync/atomic"
	"testing"
	"time"
)

// constant returns a callback that plays v and stores the first captured
// sample in heard.
func constant(v int32, heard *atomic.Int32) func(in, out []int32) {
	return func(in, out []int32) {
		heard.Store(in[0])
		for i := range out {
			out[i] = v
		}
	}
}

func TestNetworkTopology(t *testing.T) {
	network := Network[string]{
		SampleRate: 48000,
		Config: NetworkConfig[string]{
			{In: "air", Out: "air"},
			{In: "air", Out: "air"},
			{In: "left", Out: "right"},
			{In: "right", Out: "left"},
			{In: "wire", Out: "void"},
		},
	}
	devs := network.Build()

	heard := make([]atomic.Int32, len(devs))
	for i, dev := range devs {
		if err := dev.Start(constant(int32(i+1)*100, &heard[i])); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(50 * time.Millisecond)
	network.Stop()

	expected := []int32{
		100 + 200, // both nodes on the shared medium
		100 + 200,
		400, // cross wired pair hears the other side
		300,
		0, // nobody plays into wire
	}
	for i, want := range expected {
		if got := heard[i].Load(); got != want {
			t.Errorf("[dev%d] Expected %d, got %d", i, want, got)
		}
	}
}

func TestNetworkNodeStop(t *testing.T) {
	network := Network[int]{
		SampleRate: 48000,
		Config:     NetworkConfig[int]{{In: 0, Out: 0}, {In: 0, Out: 0}},
	}
	devs := network.Build()

	var first, second atomic.Int32
	devs[0].Start(constant(1, &first))
	devs[1].Start(constant(2, &second))
	time.Sleep(30 * time.Millisecond)

	devs[1].Stop()
	time.Sleep(30 * time.Millisecond)
	network.Stop()

	if got := first.Load(); got != 1 {
		t.Errorf("Expected only the remaining node on the medium, got %d", got)
	}
}

func TestNetworkNoise(t *testing.T) {
	const peak = 0.001
	network := Network[int]{
		NoiseAmplitude: peak,
		Seed:           7,
		Config:         NetworkConfig[int]{{In: 0, Out: 0}},
	}
	devs := network.Build()

	var maxAbs, calls atomic.Int32
	devs[0].Start(func(in, out []int32) {
		calls.Add(1)
		for _, v := range in {
			if v < 0 {
				v = -v
			}
			if v > maxAbs.Load() {
				maxAbs.Store(v)
			}
		}
	})
	time.Sleep(10 * time.Millisecond)
	network.Stop()

	if calls.Load() < 2 {
		t.Fatalf("Expected the network to tick, got %d calls", calls.Load())
	}
	limit := int32(math.Round(peak * math.MaxInt32))
	if got := maxAbs.Load(); got == 0 || got > limit+1 {
		t.Errorf("Expected noise within (0, %d], got %d", limit, got)
	}
}
