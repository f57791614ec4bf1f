// Package layers stacks framing on top of an audio device: the physical
// layer turns payloads into sound and back, the data link layer adds a
// sender address.
package layers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"Aethertone/pkg/async"
	"Aethertone/pkg/device"
	"Aethertone/pkg/modem"
	"Aethertone/pkg/protocol"
)

const DefaultVolume = 50

var (
	ErrClosed  = errors.New("layer closed")
	ErrTimeout = errors.New("receive timeout")
)

// PhysicalLayer bridges a device to one transmitting and one receiving
// engine. Configure the exported fields, then call Open.
type PhysicalLayer struct {
	Device   device.Device
	Config   modem.Config        // rates must match the device; zero value selects modem.DefaultConfig
	Protocol protocol.TxProtocol // zero value selects protocol.Default
	Volume   int                 // percent, 0 selects DefaultVolume

	InputBufferSize   int // device buffers queued for the decoder
	OutputBufferSize  int // waveforms queued for the device
	ReceiveBufferSize int // decoded payloads not yet consumed

	Logger   *slog.Logger
	Observer modem.Observer

	txMu sync.Mutex
	tx   *modem.Engine
	rx   *modem.Engine

	decoder Decoder
	encoder Encoder

	outChan   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	sendMu    sync.RWMutex
	wg        sync.WaitGroup
}

type Decoder struct {
	inputBuffer chan []int32
	pending     []byte
}

// Pull implements modem.Source over the bytes converted so far.
func (d *Decoder) Pull(buf []byte) int {
	n := copy(buf, d.pending)
	d.pending = append(d.pending[:0], d.pending[n:]...)
	return n
}

type waveform struct {
	samples []int32
	done    chan error
}

type Encoder struct {
	outputBuffer chan waveform // data to be sent
	current      waveform      // current sending data
}

func (p *PhysicalLayer) Open() error {
	if p.Logger == nil {
		p.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.Config == (modem.Config{}) {
		p.Config = modem.DefaultConfig()
	}
	if p.Protocol == (protocol.TxProtocol{}) {
		p.Protocol = protocol.Default()
	}
	if p.Volume == 0 {
		p.Volume = DefaultVolume
	}

	opts := []modem.Option{modem.WithLogger(p.Logger), modem.WithObserver(p.Observer)}
	var err error
	if p.tx, err = modem.NewEngine(p.Config, opts...); err != nil {
		return fmt.Errorf("tx engine: %w", err)
	}
	if p.rx, err = modem.NewEngine(p.Config, opts...); err != nil {
		return fmt.Errorf("rx engine: %w", err)
	}

	p.decoder = Decoder{inputBuffer: make(chan []int32, max(1, p.InputBufferSize))}
	p.encoder = Encoder{outputBuffer: make(chan waveform, p.OutputBufferSize)}
	p.outChan = make(chan []byte, p.ReceiveBufferSize)
	p.closed = make(chan struct{})

	p.wg.Add(1)
	go p.decodeLoop()

	if err := p.Device.Start(func(in, out []int32) {
		p.inputCallback(in)
		p.outputCallback(out)
	}); err != nil {
		p.closeOnce.Do(func() {
			close(p.closed)
			close(p.decoder.inputBuffer)
			p.wg.Wait()
		})
		return err
	}
	return nil
}

// Close stops the device and the decoder. Payloads still queued for
// sending fail with ErrClosed. Only the first call has an effect.
func (p *PhysicalLayer) Close() {
	p.closeOnce.Do(p.close)
}

func (p *PhysicalLayer) close() {
	// wake blocked senders, then wait until none is between its check and
	// its enqueue
	close(p.closed)
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.Device.Stop()
	close(p.decoder.inputBuffer)
	p.wg.Wait()

	if p.encoder.current.done != nil {
		p.encoder.current.done <- ErrClosed
	}
	for {
		select {
		case w := <-p.encoder.outputBuffer:
			w.done <- ErrClosed
		default:
			return
		}
	}
}

func (p *PhysicalLayer) inputCallback(in []int32) {
	in_copy := make([]int32, len(in))
	copy(in_copy, in)
	select {
	case p.decoder.inputBuffer <- in_copy:
	default:
		p.Logger.Warn("input overrun, dropping device buffer", "samples", len(in))
	}
}

func (p *PhysicalLayer) outputCallback(out []int32) {
	p.encoder.write(out)
}

// decodeLoop feeds captured audio to the receiving engine in order.
func (p *PhysicalLayer) decodeLoop() {
	defer p.wg.Done()
	defer close(p.outChan)

	frameBytes := p.rx.SamplesPerFrameIn() * p.rx.SampleSizeBytesIn()
	for in := range p.decoder.inputBuffer {
		p.decoder.pending = modem.AppendFloat64(p.decoder.pending, modem.Int32ToFloat64(in), p.rx.SampleSizeBytesIn())
		for len(p.decoder.pending) >= frameBytes {
			p.rx.Receive(&p.decoder)
			if data := p.rx.TakeRxData(); data != nil {
				select {
				case p.outChan <- data:
				default:
					p.Logger.Warn("receive buffer full, dropping payload", "length", len(data))
				}
			}
		}
	}
}

// try to consume the outputBuffer and write some data to out
func (e *Encoder) write(out []int32) {

	if e.current.samples == nil {
		select {
		case e.current = <-e.outputBuffer:
		default:
			// do nothing
		}
	}

	i := 0
	if e.current.samples != nil {
		i = copy(out, e.current.samples)
		e.current.samples = e.current.samples[i:]

		if len(e.current.samples) == 0 {
			e.current.done <- nil
			e.current = waveform{}
		}
	}

	clear(out[i:])
}

// modulate renders data into device samples.
func (p *PhysicalLayer) modulate(data []byte) ([]int32, error) {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	if err := p.tx.Init(data, p.Protocol, p.Volume); err != nil {
		return nil, err
	}
	var raw []byte
	sink := modem.SinkFunc(func(b []byte) {
		raw = append(raw, b...)
	})
	for p.tx.Send(sink) {
	}
	return modem.Float64ToInt32(modem.BytesToFloat64(nil, raw, p.tx.SampleSizeBytesOut())), nil
}

// SendAsync queues data for transmission; the channel yields nil once the
// last sample reached the device. It blocks while the output queue is full
// and yields ErrClosed once the layer is closed.
func (p *PhysicalLayer) SendAsync(data []byte) <-chan error {
	done := make(chan error, 1)
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	select {
	case <-p.closed:
		done <- ErrClosed
		return done
	default:
	}

	samples, err := p.modulate(data)
	if err != nil {
		done <- err
		return done
	}
	select {
	case p.encoder.outputBuffer <- waveform{samples: samples, done: done}:
	case <-p.closed:
		done <- ErrClosed
	}
	return done
}

func (p *PhysicalLayer) Send(data []byte) error {
	return async.Await(p.SendAsync(data))
}

// ReceiveAsync yields decoded payloads and is closed by Close.
func (p *PhysicalLayer) ReceiveAsync() <-chan []byte {
	return p.outChan
}

func (p *PhysicalLayer) Receive() []byte {
	return async.Await(p.ReceiveAsync())
}

func (p *PhysicalLayer) ReceiveWithTimeout(timeout time.Duration) ([]byte, error) {
	select {
	case packet, ok := <-p.ReceiveAsync():
		if !ok {
			return nil, ErrClosed
		}
		return packet, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// TxDurationFrames is the length in frames of the last prepared waveform.
func (p *PhysicalLayer) TxDurationFrames() int {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	return p.tx.TxDurationFrames()
}
