// Package modem turns byte payloads into multi-tone audio and back.
//
// An Engine is single threaded: every method must be called from the same
// goroutine, or under a lock held by the caller.
package modem

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"Aethertone/pkg/fec"
	"Aethertone/pkg/protocol"
	"Aethertone/pkg/spectrum"
)

const (
	BaseSampleRate     = 48000.0
	MaxSamplesPerFrame = 1024
	MinSamplesPerFrame = 64
	MaxDataBits        = protocol.MaxDataBits
	MaxDataSize        = fec.MaxDataSize
	MaxLength          = fec.MaxLength
	MaxSpectrumHistory = spectrum.MaxHistory
	MaxRecordedFrames  = 1024

	// MarkerRatio is how much louder the active bin of a marker slot must
	// be than both its partner bin and the noise floor.
	MarkerRatio = 3.0
)

const (
	freqDeltaBin      = 2
	nBitsInMarker     = 16
	nMarkerFrames     = 16
	nPostMarkerFrames = 2
	framesToAnalyze   = 4
)

var ErrInvalidArgument = errors.New("invalid argument")

type Config struct {
	SampleRateIn       float64
	SampleRateOut      float64
	SamplesPerFrame    int
	SampleSizeBytesIn  int
	SampleSizeBytesOut int
}

func DefaultConfig() Config {
	return Config{
		SampleRateIn:       BaseSampleRate,
		SampleRateOut:      BaseSampleRate,
		SamplesPerFrame:    MaxSamplesPerFrame,
		SampleSizeBytesIn:  SampleFormatF32,
		SampleSizeBytesOut: SampleFormatF32,
	}
}

func validSampleSize(n int) bool {
	return n == SampleFormatI16 || n == SampleFormatF32
}

func (c Config) Validate() error {
	if c.SamplesPerFrame < MinSamplesPerFrame || c.SamplesPerFrame > MaxSamplesPerFrame {
		return fmt.Errorf("%w: samples per frame must be in %d..%d, got %d",
			ErrInvalidArgument, MinSamplesPerFrame, MaxSamplesPerFrame, c.SamplesPerFrame)
	}
	if c.SampleRateIn <= 0 || c.SampleRateOut <= 0 {
		return fmt.Errorf("%w: sample rates must be positive, got %g and %g",
			ErrInvalidArgument, c.SampleRateIn, c.SampleRateOut)
	}
	if !validSampleSize(c.SampleSizeBytesIn) || !validSampleSize(c.SampleSizeBytesOut) {
		return fmt.Errorf("%w: sample size must be %d or %d bytes, got %d and %d",
			ErrInvalidArgument, SampleFormatI16, SampleFormatF32, c.SampleSizeBytesIn, c.SampleSizeBytesOut)
	}
	return nil
}

type Option func(*Engine)

// WithLogger routes debug records about detection and decoding to l.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

type Engine struct {
	cfg Config

	samplesPerFrameIn  int
	samplesPerFrameOut int
	hzPerBin           float64
	freqDeltaHz        float64
	encodedDataOffset  int

	codec    *fec.Codec
	logger   *slog.Logger
	observer Observer

	tx txState
	rx rxState
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spf := cfg.SamplesPerFrame
	e := &Engine{
		cfg:                cfg,
		samplesPerFrameIn:  max(1, int(math.Round(float64(spf)*cfg.SampleRateIn/BaseSampleRate))),
		samplesPerFrameOut: max(1, int(math.Round(float64(spf)*cfg.SampleRateOut/BaseSampleRate))),
		hzPerBin:           BaseSampleRate / float64(spf),
		encodedDataOffset:  fec.HeaderSize,
		codec:              fec.NewCodec(),
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:           nopObserver{},
	}
	e.freqDeltaHz = freqDeltaBin * e.hzPerBin

	for _, opt := range opts {
		opt(e)
	}

	e.initTx()
	e.initRx()
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) SamplesPerFrame() int {
	return e.cfg.SamplesPerFrame
}

func (e *Engine) SamplesPerFrameIn() int {
	return e.samplesPerFrameIn
}

func (e *Engine) SamplesPerFrameOut() int {
	return e.samplesPerFrameOut
}

func (e *Engine) SampleRateIn() float64 {
	return e.cfg.SampleRateIn
}

func (e *Engine) SampleRateOut() float64 {
	return e.cfg.SampleRateOut
}

func (e *Engine) SampleSizeBytesIn() int {
	return e.cfg.SampleSizeBytesIn
}

func (e *Engine) SampleSizeBytesOut() int {
	return e.cfg.SampleSizeBytesOut
}

// HzPerBin is the spectral resolution of one frame at the base rate.
func (e *Engine) HzPerBin() float64 {
	return e.hzPerBin
}

func (e *Engine) FreqDeltaHz() float64 {
	return e.freqDeltaHz
}

// EncodedDataOffset is the number of header bytes preceding the payload
// blocks in an encoded stream.
func (e *Engine) EncodedDataOffset() int {
	return e.encodedDataOffset
}

func (e *Engine) DefaultTxProtocol() protocol.TxProtocol {
	return protocol.Default()
}

func (e *Engine) bins() int {
	return e.cfg.SamplesPerFrame/2 + 1
}

// fits reports whether every bin touched by p lies below the Nyquist bin.
func (e *Engine) fits(p protocol.TxProtocol) bool {
	return p.MaxBin(freqDeltaBin, nBitsInMarker) < e.bins()-1
}

// maxDataFrames is the number of data frames of the longest payload p can
// carry.
func (e *Engine) maxDataFrames(p protocol.TxProtocol) int {
	return ceilDiv(fec.EncodedLength(MaxLength, p), p.BytesPerTx) * p.FramesPerTx
}
