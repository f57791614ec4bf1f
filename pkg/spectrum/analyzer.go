// Package spectrum turns frames of audio samples into magnitude spectra and
// keeps a short history of them as a noise-floor estimate.
package spectrum

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MaxHistory is the deepest history an Analyzer keeps.
const MaxHistory = 4

// Transform computes the magnitude spectrum of fixed-size frames. No window
// is applied: transmitted tones sit exactly on bins and repeat an integer
// number of times per frame.
type Transform struct {
	fft    *fourier.FFT
	coeffs []complex128
	n      int
}

func NewTransform(n int) *Transform {
	return &Transform{
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
		n:      n,
	}
}

func (t *Transform) Len() int {
	return t.n
}

func (t *Transform) Bins() int {
	return t.n/2 + 1
}

// Magnitude writes |X_k| for k = 0..n/2 into dst, growing it if needed.
func (t *Transform) Magnitude(dst, frame []float64) []float64 {
	if len(frame) != t.n {
		panic("spectrum: frame length does not match transform size")
	}
	t.coeffs = t.fft.Coefficients(t.coeffs, frame)
	if cap(dst) < len(t.coeffs) {
		dst = make([]float64, len(t.coeffs))
	}
	dst = dst[:len(t.coeffs)]
	for k, c := range t.coeffs {
		dst[k] = cmplx.Abs(c)
	}
	return dst
}

// Analyzer maintains the latest spectrum, a bounded history and the
// elementwise average over that history.
type Analyzer struct {
	transform *Transform
	history   *Ring

	current []float64
	average []float64

	hasNewSpectrum bool
}

func NewAnalyzer(samplesPerFrame, historyDepth int) *Analyzer {
	historyDepth = max(1, min(historyDepth, MaxHistory))
	t := NewTransform(samplesPerFrame)
	return &Analyzer{
		transform: t,
		history:   NewRing(historyDepth, t.Bins()),
		current:   make([]float64, t.Bins()),
		average:   make([]float64, t.Bins()),
	}
}

// Analyze computes the spectrum of frame, appends it to the history and
// refreshes the average. The returned slice is owned by the analyzer.
func (a *Analyzer) Analyze(frame []float64) []float64 {
	a.current = a.transform.Magnitude(a.current, frame)
	a.history.Push(a.current)

	clear(a.average)
	for i := 0; i < a.history.Len(); i++ {
		for k, v := range a.history.At(i) {
			a.average[k] += v
		}
	}
	scale := 1 / float64(a.history.Len())
	for k := range a.average {
		a.average[k] *= scale
	}

	a.hasNewSpectrum = true
	return a.current
}

func (a *Analyzer) Current() []float64 {
	return a.current
}

// Average is the noise-floor estimate. The slice is owned by the analyzer.
func (a *Analyzer) Average() []float64 {
	return a.average
}

func (a *Analyzer) Transform() *Transform {
	return a.transform
}

// Take returns a copy of the latest spectrum if one was produced since the
// previous Take.
func (a *Analyzer) Take() ([]float64, bool) {
	if !a.hasNewSpectrum {
		return nil, false
	}
	a.hasNewSpectrum = false
	out := make([]float64, len(a.current))
	copy(out, a.current)
	return out, true
}

// Len is the number of spectra the average is taken over.
func (a *Analyzer) Len() int {
	return a.history.Len()
}

// ClearHistory forgets every spectrum seen so far. The latest spectrum stays
// available to Current and Take.
func (a *Analyzer) ClearHistory() {
	a.history.Reset()
	clear(a.average)
}
