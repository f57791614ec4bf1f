package modem

// Sink receives every block of synthesized audio, already converted to the
// configured output sample format.
type Sink interface {
	Push(data []byte)
}

// Source fills buf with captured audio in the configured input sample
// format and reports how many bytes it wrote.
type Source interface {
	Pull(buf []byte) int
}

type SinkFunc func(data []byte)

func (f SinkFunc) Push(data []byte) {
	f(data)
}

type SourceFunc func(buf []byte) int

func (f SourceFunc) Pull(buf []byte) int {
	return f(buf)
}

// Observer is notified about engine events. Implementations must be cheap:
// every call happens on the audio path.
type Observer interface {
	FrameAnalyzed()
	MarkerDetected(protocolID int)
	ReceptionDropped(reason string)
	PayloadReceived(protocolID, length int, corrected bool)
	SegmentSent(protocolID, frames int)
}

type nopObserver struct{}

func (nopObserver) FrameAnalyzed()                 {}
func (nopObserver) MarkerDetected(int)             {}
func (nopObserver) ReceptionDropped(string)        {}
func (nopObserver) PayloadReceived(int, int, bool) {}
func (nopObserver) SegmentSent(int, int)           {}
