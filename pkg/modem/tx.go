package modem

import (
	"fmt"

	"Aethertone/pkg/fixpoint"
	"Aethertone/pkg/protocol"
)

type txState struct {
	protocol   protocol.TxProtocol
	protocolID int
	volume     int
	amplitude  float64

	data    []byte
	encoded []byte
	groups  int
	segment int
	hasData bool

	bank  *toneBank
	bits  *BitSet
	block []float64
	out   []byte

	q15         []int16
	amplitude16 []int16
}

func (e *Engine) initTx() {
	e.tx = txState{
		protocolID: -1,
		bank:       newToneBank(e.hzPerBin, e.cfg.SampleRateOut, e.samplesPerFrameOut),
		block:      make([]float64, e.samplesPerFrameOut),
	}
}

// Init prepares a transmission of payload with protocol p at volume percent.
// A pending transmission is abandoned even when Init fails.
func (e *Engine) Init(payload []byte, p protocol.TxProtocol, volume int) error {
	e.tx.hasData = false
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: volume must be in 0..100, got %d", ErrInvalidArgument, volume)
	}
	if !e.fits(p) {
		return fmt.Errorf("%w: protocol %s reaches bin %d, frame of %d samples has %d",
			ErrInvalidArgument, p.Name, p.MaxBin(freqDeltaBin, nBitsInMarker), e.cfg.SamplesPerFrame, e.bins())
	}
	encoded, err := e.codec.Encode(payload, p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	tx := &e.tx
	tx.protocol = p
	tx.protocolID = protocol.ID(p)
	tx.volume = volume
	tx.amplitude = float64(volume) / 100 / float64(max(p.BitsPerTx(), nBitsInMarker))
	tx.data = append(tx.data[:0], payload...)
	tx.encoded = encoded
	tx.groups = ceilDiv(len(encoded), p.BytesPerTx)
	tx.segment = 0
	tx.hasData = true
	tx.bits = NewBitSet(p.BitsPerTx())
	tx.amplitude16 = tx.amplitude16[:0]

	e.logger.Debug("tx initialized",
		"protocol", p.Name, "length", len(payload), "encoded", len(encoded), "volume", volume)
	return nil
}

func (e *Engine) HasTxData() bool {
	return e.tx.hasData
}

func (e *Engine) TxProtocol() protocol.TxProtocol {
	return e.tx.protocol
}

// TxDurationFrames is the length of the whole prepared transmission.
func (e *Engine) TxDurationFrames() int {
	if e.tx.encoded == nil {
		return 0
	}
	return nMarkerFrames + nPostMarkerFrames + e.tx.groups*e.tx.protocol.FramesPerTx
}

// EncodedTxData returns a copy of the encoded stream of the prepared
// transmission.
func (e *Engine) EncodedTxData() []byte {
	return append([]byte(nil), e.tx.encoded...)
}

// Send synthesizes the next segment of the transmission and pushes it to
// sink: the start marker first, then the lead-in silence, then one group per
// call. It returns false once everything has been sent.
func (e *Engine) Send(sink Sink) bool {
	tx := &e.tx
	if !tx.hasData {
		return false
	}

	var frames int
	clear(tx.block)
	switch tx.segment {
	case 0:
		frames = nMarkerFrames
		e.synthMarker()
	case 1:
		frames = nPostMarkerFrames
	default:
		frames = tx.protocol.FramesPerTx
		e.synthGroup(tx.segment - 2)
	}

	tx.out = tx.out[:0]
	tx.q15 = fixpoint.FromFloats(tx.q15, tx.block)
	for range frames {
		tx.out = AppendFloat64(tx.out, tx.block, e.cfg.SampleSizeBytesOut)
		tx.amplitude16 = append(tx.amplitude16, tx.q15...)
	}

	tx.segment++
	if tx.segment-2 >= tx.groups {
		tx.hasData = false
		e.logger.Debug("tx complete", "protocol", tx.protocol.Name, "frames", e.TxDurationFrames())
	}

	e.observer.SegmentSent(tx.protocolID, frames)
	sink.Push(tx.out)
	return true
}

// markerBin is the active bin of marker slot i.
func markerBin(p protocol.TxProtocol, i int) (on, off int) {
	hi := p.FreqStart + 2*i
	if (i/p.MarkerRun())%2 == 0 {
		return hi, hi + 1
	}
	return hi + 1, hi
}

func (e *Engine) synthMarker() {
	tx := &e.tx
	for i := 0; i < nBitsInMarker; i++ {
		on, _ := markerBin(tx.protocol, i)
		tx.bank.mix(tx.block, on, tx.amplitude)
	}
}

func (e *Engine) synthGroup(g int) {
	tx := &e.tx
	p := tx.protocol
	start := g * p.BytesPerTx
	tx.bits.FromBytes(tx.encoded[start:min(start+p.BytesPerTx, len(tx.encoded))])
	for b := 0; b < p.BitsPerTx(); b++ {
		if tx.bits.IsSet(b) {
			tx.bank.mix(tx.block, p.FreqStart+freqDeltaBin*b, tx.amplitude)
		}
	}
}

// TakeTxAmplitudeData16 returns the Q15 view of everything sent since the
// previous call, or nil if nothing was sent.
func (e *Engine) TakeTxAmplitudeData16() []int16 {
	if len(e.tx.amplitude16) == 0 {
		return nil
	}
	out := append([]int16(nil), e.tx.amplitude16...)
	e.tx.amplitude16 = e.tx.amplitude16[:0]
	return out
}
