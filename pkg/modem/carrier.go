package modem

import "math"

type CarrierConfig struct {
	Amplitude  float64
	Freq       float64
	Phase      float64
	SampleRate float64
	Size       int
}

func (p CarrierConfig) New() []float64 {
	signal := make([]float64, p.Size)
	for i := 0; i < p.Size; i++ {
		t := float64(i) / p.SampleRate
		signal[i] = p.Amplitude * math.Sin(2*math.Pi*p.Freq*t+p.Phase)
	}
	return signal
}

// toneBank caches one output frame of unit amplitude carrier per spectral
// bin. At the base rate every bin completes a whole number of periods per
// frame, so frames repeat back to back without phase jumps.
type toneBank struct {
	hzPerBin   float64
	sampleRate float64
	size       int
	tones      map[int][]float64
}

func newToneBank(hzPerBin, sampleRate float64, size int) *toneBank {
	return &toneBank{
		hzPerBin:   hzPerBin,
		sampleRate: sampleRate,
		size:       size,
		tones:      make(map[int][]float64),
	}
}

func (b *toneBank) tone(bin int) []float64 {
	if t, ok := b.tones[bin]; ok {
		return t
	}
	t := CarrierConfig{
		Amplitude:  1,
		Freq:       b.hzPerBin * float64(bin),
		SampleRate: b.sampleRate,
		Size:       b.size,
	}.New()
	b.tones[bin] = t
	return t
}

// mix adds amplitude times the tone of bin into block.
func (b *toneBank) mix(block []float64, bin int, amplitude float64) {
	for i, v := range b.tone(bin) {
		block[i] += amplitude * v
	}
}
