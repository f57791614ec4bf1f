package metrics

import (
	"testing"

	"Aethertone/pkg/modem"
	"Aethertone/pkg/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type capture struct {
	data []byte
}

func (c *capture) Push(data []byte) {
	c.data = append(c.data, data...)
}

type reader struct {
	data []byte
}

func (r *reader) Pull(buf []byte) int {
	n := copy(buf, r.data)
	r.data = r.data[n:]
	return n
}

func TestCollectorCountsEngineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	tx, err := modem.NewEngine(modem.DefaultConfig(), modem.WithObserver(c))
	if err != nil {
		t.Fatal(err)
	}
	rx, err := modem.NewEngine(modem.DefaultConfig(), modem.WithObserver(c))
	if err != nil {
		t.Fatal(err)
	}

	p := protocol.Default()
	if err := tx.Init([]byte("metrics"), p, 50); err != nil {
		t.Fatal(err)
	}
	out := &capture{}
	for tx.Send(out) {
	}
	frames := tx.TxDurationFrames()
	out.data = append(out.data, make([]byte, 2*rx.SamplesPerFrameIn()*rx.SampleSizeBytesIn())...)

	in := &reader{data: out.data}
	for len(in.data) > 0 {
		rx.Receive(in)
	}
	if got := string(rx.TakeRxData()); got != "metrics" {
		t.Fatalf("expected payload %q, got %q", "metrics", got)
	}

	if got := testutil.ToFloat64(c.FramesSent.WithLabelValues(p.Name)); got != float64(frames) {
		t.Errorf("expected %d frames sent, got %v", frames, got)
	}
	if got := testutil.ToFloat64(c.FramesAnalyzed); got != float64(frames+2) {
		t.Errorf("expected %d frames analyzed, got %v", frames+2, got)
	}
	if got := testutil.ToFloat64(c.MarkersDetected.WithLabelValues(p.Name)); got != 1 {
		t.Errorf("expected 1 marker, got %v", got)
	}
	if got := testutil.ToFloat64(c.PayloadsReceived.WithLabelValues(p.Name)); got != 1 {
		t.Errorf("expected 1 payload, got %v", got)
	}
	if got := testutil.ToFloat64(c.PayloadsCorrected.WithLabelValues(p.Name)); got != 0 {
		t.Errorf("expected no corrected payloads, got %v", got)
	}
	if n := testutil.CollectAndCount(c.PayloadSize); n != 1 {
		t.Errorf("expected one payload size series, got %d", n)
	}
}

func TestCollectorDropReasons(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.ReceptionDropped(modem.DropDecodeFailed)
	c.ReceptionDropped(modem.DropDecodeFailed)
	c.ReceptionDropped(modem.DropMarkerTooLong)

	if got := testutil.ToFloat64(c.ReceptionsDropped.WithLabelValues(modem.DropDecodeFailed)); got != 2 {
		t.Errorf("expected 2 decode failures, got %v", got)
	}
	if got := testutil.CollectAndCount(c.ReceptionsDropped); got != 2 {
		t.Errorf("expected 2 reasons, got %d", got)
	}
}

func TestProtocolLabel(t *testing.T) {
	if got := protocolLabel(protocol.Fastest); got != "Fastest" {
		t.Errorf("expected Fastest, got %s", got)
	}
	if got := protocolLabel(-1); got != "-1" {
		t.Errorf("expected -1, got %s", got)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
