package layers

import "Aethertone/pkg/async"

// NaiveDataLinkLayer prefixes every payload with the sender address and
// drops payloads it sent itself, which a shared medium echoes back.
type NaiveDataLinkLayer struct {
	PhysicalLayer

	Address    byte
	BufferSize int

	outChan chan []byte
}

// MaxPayload is the longest payload after the address byte.
const MaxPayload = 139

func (l *NaiveDataLinkLayer) Open() error {
	if err := l.PhysicalLayer.Open(); err != nil {
		return err
	}
	l.outChan = make(chan []byte, l.BufferSize)
	go func() {
		defer close(l.outChan)
		for data := range l.PhysicalLayer.ReceiveAsync() {
			if len(data) < 2 {
				continue
			}
			if data[0] != l.Address {
				// the packet was sent by someone else
				l.outChan <- data[1:]
			}
		}
	}()
	return nil
}

func (l *NaiveDataLinkLayer) SendAsync(data []byte) <-chan error {
	return l.PhysicalLayer.SendAsync(append([]byte{l.Address}, data...))
}

func (l *NaiveDataLinkLayer) Send(data []byte) error {
	return async.Await(l.SendAsync(data))
}

func (l *NaiveDataLinkLayer) ReceiveAsync() <-chan []byte {
	return l.outChan
}

func (l *NaiveDataLinkLayer) Receive() []byte {
	return async.Await(l.ReceiveAsync())
}
