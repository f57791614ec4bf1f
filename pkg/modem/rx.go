package modem

import (
	"fmt"

	"Aethertone/pkg/fec"
	"Aethertone/pkg/protocol"
	"Aethertone/pkg/spectrum"
)

type State int

const (
	StateAnalyzing State = iota
	StateReceiving
	StateDecoding
)

func (s State) String() string {
	switch s {
	case StateAnalyzing:
		return "analyzing"
	case StateReceiving:
		return "receiving"
	case StateDecoding:
		return "decoding"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reasons passed to Observer.ReceptionDropped.
const (
	DropMarkerTooLong      = "marker_too_long"
	DropRecordingTooLong   = "recording_too_long"
	DropHeaderNotDecodable = "header_not_decodable"
	DropDecodeFailed       = "decode_failed"
)

// markerEndSteps are the candidate marker end positions in quarter frames
// after the start of the last frame that still carried the marker, most
// likely first.
var markerEndSteps = [...]int{4, 3, 5, 2, 6, 1, 7, 8}

type rxState struct {
	state State

	framesToAnalyze     int
	framesLeftToAnalyze int
	framesToRecord      int
	framesLeftToRecord  int

	analyzer  *spectrum.Analyzer
	transform *spectrum.Transform
	mag       []float64

	pending []byte
	frameIn []float64
	frame   []float64

	noiseFloor  []float64
	baseline    []float64
	hasBaseline bool
	candidate   int
	markerSum   float64
	markerCount int
	markerLevel float64

	protocol   protocol.TxProtocol
	protocolID int

	recorded        []float64
	recordedFrames  int
	lastMarkerFrame int
	markerEnded     bool
	headerDecoded   bool
	markerEnd       int
	payloadLength   int
	bits            *BitSet

	data       []byte
	dataProto  protocol.TxProtocol
	dataProtID int
	hasNewData bool
}

func (e *Engine) initRx() {
	spf := e.cfg.SamplesPerFrame
	a := spectrum.NewAnalyzer(spf, MaxSpectrumHistory)
	e.rx = rxState{
		framesToAnalyze: framesToAnalyze,
		analyzer:        a,
		transform:       spectrum.NewTransform(spf),
		pending:         make([]byte, 0, e.samplesPerFrameIn*e.cfg.SampleSizeBytesIn),
		frame:           make([]float64, spf),
		noiseFloor:      make([]float64, a.Transform().Bins()),
		baseline:        make([]float64, a.Transform().Bins()),
		dataProtID:      -1,
	}
	e.resetRx()
}

// resetRx returns the receiver to the analyzing state. The spectra of the
// finished reception are forgotten so they never reach the noise floor; the
// floor measured before its marker is kept.
func (e *Engine) resetRx() {
	rx := &e.rx
	rx.analyzer.ClearHistory()
	rx.state = StateAnalyzing
	rx.framesLeftToAnalyze = rx.framesToAnalyze
	rx.framesLeftToRecord = 0
	rx.candidate = -1
	rx.markerSum = 0
	rx.markerCount = 0
	rx.recorded = rx.recorded[:0]
	rx.recordedFrames = 0
}

// Receive pulls at most one frame of audio from src. Partial reads are kept
// until a whole frame is available, which is then analyzed.
func (e *Engine) Receive(src Source) {
	rx := &e.rx
	need := cap(rx.pending)
	start := len(rx.pending)
	rx.pending = rx.pending[:need]
	n := max(0, min(src.Pull(rx.pending[start:]), need-start))
	rx.pending = rx.pending[:start+n]
	if len(rx.pending) < need {
		return
	}

	rx.frameIn = BytesToFloat64(rx.frameIn, rx.pending, e.cfg.SampleSizeBytesIn)
	rx.pending = rx.pending[:0]
	resample(rx.frame, rx.frameIn)
	e.processFrame(rx.frame)
}

func (e *Engine) processFrame(frame []float64) {
	rx := &e.rx
	if rx.state == StateAnalyzing {
		// a marker may start anywhere inside this frame, so the floor
		// candidate only covers the frames before it
		rx.hasBaseline = rx.analyzer.Len() > 0
		copy(rx.baseline, rx.analyzer.Average())
	}
	mag := rx.analyzer.Analyze(frame)
	e.observer.FrameAnalyzed()

	if rx.state == StateReceiving {
		e.record(frame, mag)
		return
	}
	e.detect(mag)
}

// matchMarker checks every marker slot of p and returns the mean magnitude
// of the active bins.
func (e *Engine) matchMarker(p protocol.TxProtocol, mag []float64) (float64, bool) {
	floor := e.rx.noiseFloor
	var level float64
	for i := 0; i < nBitsInMarker; i++ {
		on, off := markerBin(p, i)
		if mag[on] <= MarkerRatio*mag[off] || mag[on] <= MarkerRatio*floor[on] {
			return 0, false
		}
		level += mag[on]
	}
	return level / nBitsInMarker, true
}

func (e *Engine) detect(mag []float64) {
	rx := &e.rx

	id, level := -1, 0.0
	for i, p := range protocol.Protocols() {
		if !e.fits(p) {
			continue
		}
		if l, ok := e.matchMarker(p, mag); ok {
			id, level = i, l
			break
		}
	}

	if id < 0 {
		if rx.hasBaseline {
			copy(rx.noiseFloor, rx.baseline)
		}
		rx.candidate = -1
		rx.framesLeftToAnalyze = rx.framesToAnalyze
		return
	}
	if id != rx.candidate {
		rx.candidate = id
		rx.markerSum = 0
		rx.markerCount = 0
		rx.framesLeftToAnalyze = rx.framesToAnalyze
	}

	rx.markerSum += level
	rx.markerCount++
	rx.framesLeftToAnalyze--
	if rx.framesLeftToAnalyze > 0 {
		return
	}
	e.startReceiving()
}

func (e *Engine) startReceiving() {
	rx := &e.rx
	rx.protocolID = rx.candidate
	rx.protocol, _ = protocol.ByID(rx.candidate)
	rx.markerLevel = rx.markerSum / float64(rx.markerCount)

	rx.state = StateReceiving
	rx.recorded = rx.recorded[:0]
	rx.recordedFrames = 0
	rx.lastMarkerFrame = -1
	rx.markerEnded = false
	rx.headerDecoded = false
	rx.bits = NewBitSet(rx.protocol.BitsPerTx())
	rx.framesToRecord = min(MaxRecordedFrames,
		nMarkerFrames+nPostMarkerFrames+e.maxDataFrames(rx.protocol)+2)
	rx.framesLeftToRecord = rx.framesToRecord

	e.observer.MarkerDetected(rx.protocolID)
	e.logger.Debug("marker detected",
		"protocol", rx.protocol.Name, "level", rx.markerLevel, "framesToRecord", rx.framesToRecord)
}

func (e *Engine) drop(reason string) {
	e.logger.Debug("reception dropped", "protocol", e.rx.protocol.Name, "reason", reason)
	e.observer.ReceptionDropped(reason)
	e.resetRx()
}

func (e *Engine) record(frame, mag []float64) {
	rx := &e.rx
	if rx.recordedFrames >= MaxRecordedFrames {
		e.drop(DropRecordingTooLong)
		return
	}

	idx := rx.recordedFrames
	rx.recorded = append(rx.recorded, frame...)
	rx.recordedFrames++
	rx.framesLeftToRecord = rx.framesToRecord - rx.recordedFrames

	if !rx.markerEnded {
		if _, ok := e.matchMarker(rx.protocol, mag); ok {
			rx.lastMarkerFrame = idx
			if rx.framesToAnalyze+idx+1 > nMarkerFrames+2 {
				e.drop(DropMarkerTooLong)
				return
			}
		} else {
			rx.markerEnded = true
		}
	}

	if rx.markerEnded && !rx.headerDecoded && len(rx.recorded) >= e.headerSamplesNeeded() {
		if !e.locateHeader() {
			e.drop(DropHeaderNotDecodable)
			return
		}
	}

	if rx.framesLeftToRecord <= 0 {
		e.decode()
	}
}

func (e *Engine) markerEndCandidate(step int) int {
	spf := e.cfg.SamplesPerFrame
	return e.rx.lastMarkerFrame*spf + step*spf/4
}

// headerSamplesNeeded is the recording length that covers the header
// groups for every marker end candidate.
func (e *Engine) headerSamplesNeeded() int {
	rx := &e.rx
	spf := e.cfg.SamplesPerFrame
	groups := ceilDiv(fec.HeaderSize, rx.protocol.BytesPerTx)
	return (rx.lastMarkerFrame+2+nPostMarkerFrames)*spf + groups*rx.protocol.FramesPerTx*spf
}

// readGroup demodulates group g assuming the marker ended at sample
// markerEnd. The window is one frame long and centred in the group.
func (e *Engine) readGroup(markerEnd, g int, dst []byte) bool {
	rx := &e.rx
	p := rx.protocol
	spf := e.cfg.SamplesPerFrame

	start := markerEnd + nPostMarkerFrames*spf + g*p.FramesPerTx*spf + (p.FramesPerTx-1)*spf/2
	if start < 0 || start+spf > len(rx.recorded) {
		return false
	}
	rx.mag = rx.transform.Magnitude(rx.mag, rx.recorded[start:start+spf])

	rx.bits.Reset()
	for b := 0; b < p.BitsPerTx(); b++ {
		bin := p.FreqStart + freqDeltaBin*b
		f := rx.noiseFloor[bin]
		if rx.mag[bin] > f+(rx.markerLevel-f)/2 {
			rx.bits.Set(b)
		}
	}
	copy(dst, rx.bits.Bytes())
	return true
}

func (e *Engine) readStream(markerEnd, n int) ([]byte, bool) {
	bpt := e.rx.protocol.BytesPerTx
	groups := ceilDiv(n, bpt)
	buf := make([]byte, groups*bpt)
	for g := 0; g < groups; g++ {
		if !e.readGroup(markerEnd, g, buf[g*bpt:(g+1)*bpt]) {
			return nil, false
		}
	}
	return buf[:n], true
}

func (e *Engine) locateHeader() bool {
	rx := &e.rx
	p := rx.protocol
	spf := e.cfg.SamplesPerFrame

	for _, step := range markerEndSteps {
		end := e.markerEndCandidate(step)
		encoded, ok := e.readStream(end, fec.HeaderSize)
		if !ok {
			continue
		}
		h, _, err := e.codec.DecodeHeader(encoded)
		if err != nil {
			continue
		}

		rx.markerEnd = end
		rx.payloadLength = h.Length
		rx.headerDecoded = true

		groups := ceilDiv(fec.EncodedLength(h.Length, p), p.BytesPerTx)
		last := end + nPostMarkerFrames*spf + groups*p.FramesPerTx*spf
		rx.framesToRecord = max(rx.recordedFrames, min(rx.framesToRecord, ceilDiv(last, spf)))
		rx.framesLeftToRecord = rx.framesToRecord - rx.recordedFrames

		e.logger.Debug("header decoded",
			"protocol", p.Name, "length", h.Length, "markerEnd", end, "framesToRecord", rx.framesToRecord)
		return true
	}
	return false
}

func (e *Engine) decode() {
	rx := &e.rx
	rx.state = StateDecoding

	n := fec.EncodedLength(rx.payloadLength, rx.protocol)
	ends := []int{rx.markerEnd}
	for _, step := range markerEndSteps {
		if end := e.markerEndCandidate(step); end != rx.markerEnd {
			ends = append(ends, end)
		}
	}

	var err error = fec.ErrTruncated
	for _, end := range ends {
		encoded, ok := e.readStream(end, n)
		if !ok {
			continue
		}
		var payload []byte
		var corrected bool
		payload, corrected, err = e.codec.Decode(encoded, rx.protocol)
		if err != nil {
			continue
		}

		rx.data = payload
		rx.dataProto = rx.protocol
		rx.dataProtID = rx.protocolID
		rx.hasNewData = true
		e.observer.PayloadReceived(rx.protocolID, len(payload), corrected)
		e.logger.Debug("payload received",
			"protocol", rx.protocol.Name, "length", len(payload), "corrected", corrected)
		e.resetRx()
		return
	}

	e.logger.Debug("payload not decodable", "protocol", rx.protocol.Name, "err", err)
	e.drop(DropDecodeFailed)
}

func (e *Engine) State() State {
	return e.rx.state
}

func (e *Engine) IsAnalyzing() bool {
	return e.rx.state == StateAnalyzing
}

func (e *Engine) IsReceiving() bool {
	return e.rx.state == StateReceiving
}

func (e *Engine) FramesToAnalyze() int {
	return e.rx.framesToAnalyze
}

func (e *Engine) FramesLeftToAnalyze() int {
	return e.rx.framesLeftToAnalyze
}

func (e *Engine) FramesToRecord() int {
	return e.rx.framesToRecord
}

func (e *Engine) FramesLeftToRecord() int {
	return e.rx.framesLeftToRecord
}

// TakeRxData returns the last decoded payload once; later calls return nil
// until another payload is decoded.
func (e *Engine) TakeRxData() []byte {
	if !e.rx.hasNewData {
		return nil
	}
	e.rx.hasNewData = false
	return append([]byte(nil), e.rx.data...)
}

// RxData returns a copy of the last decoded payload without consuming it.
func (e *Engine) RxData() []byte {
	return append([]byte(nil), e.rx.data...)
}

// RxProtocol is the protocol of the last decoded payload.
func (e *Engine) RxProtocol() protocol.TxProtocol {
	return e.rx.dataProto
}

// RxProtocolID is the catalog id of the last decoded payload, -1 before the
// first one.
func (e *Engine) RxProtocolID() int {
	return e.rx.dataProtID
}

// TakeSpectrum returns the spectrum of the most recent frame if it has not
// been taken yet.
func (e *Engine) TakeSpectrum() ([]float64, bool) {
	return e.rx.analyzer.Take()
}
