package device

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// NetworkConfig lists, per node, the medium it listens to and the medium
// it plays into.
type NetworkConfig[BufferIDType comparable] []struct {
	In  BufferIDType
	Out BufferIDType
}

type networkNode[BufferIDType comparable] struct {
	*Network[BufferIDType]
	input    []int32
	output   []int32
	callback func([]int32, []int32)
}

// Network simulates several devices sharing acoustic media. Every tick each
// started node hears the sum of what all nodes played into its medium on
// the previous tick.
type Network[BufferIDType comparable] struct {
	SampleRate     float64                     // the fake sample rate, 0 means no limit
	Config         NetworkConfig[BufferIDType] // the topology of the network
	NoiseAmplitude float64                     // peak of the uniform noise added to every medium
	Seed           uint64

	mu      sync.Mutex
	once    sync.Once
	rng     *rand.Rand
	buffers map[BufferIDType][]int32
	devices []*networkNode[BufferIDType]
	done    chan struct{}
	wg      sync.WaitGroup
}

// Stop halts the clock of the whole network.
func (n *Network[BufferIDType]) Stop() {
	n.mu.Lock()
	for _, d := range n.devices {
		d.callback = nil
	}
	n.mu.Unlock()
	select {
	case <-n.done:
	default:
		close(n.done)
	}
	n.wg.Wait()
}

func (n *Network[BufferIDType]) GetBuffer(name BufferIDType) []int32 {
	buf, ok := n.buffers[name]
	if !ok {
		buf = alloci32(BufferSize)
		n.buffers[name] = buf
	}
	return buf
}

// Build creates one device per Config entry.
func (n *Network[BufferIDType]) Build() []Device {
	n.buffers = make(map[BufferIDType][]int32)
	n.done = make(chan struct{})
	n.rng = rand.New(rand.NewSource(n.Seed))
	n.devices = n.devices[:0]
	out := make([]Device, 0, len(n.Config))
	for _, deviceConfig := range n.Config {
		node := &networkNode[BufferIDType]{
			Network: n,
			input:   n.GetBuffer(deviceConfig.In),
			output:  alloci32(BufferSize),
		}
		n.devices = append(n.devices, node)
		out = append(out, node)
	}
	return out
}

func (n *Network[BufferIDType]) update() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, d := range n.devices {
		cleari32(d.output)
		if d.callback != nil {
			d.callback(d.input, d.output)
		}
	}

	// clear the buffers
	for _, buf := range n.buffers {
		cleari32(buf)
	}

	// sum up the output of all the devices to the input buffer
	for i, deviceConfig := range n.Config {
		device := n.devices[i]
		buf := n.buffers[deviceConfig.Out]
		sumi32(buf, device.output, buf)
	}

	for _, buf := range n.buffers {
		noisei32(buf, n.NoiseAmplitude, n.rng)
	}
}

func (n *Network[BufferIDType]) run() {
	defer n.wg.Done()
	if n.SampleRate == 0 {
		for {
			select {
			case <-n.done:
				return
			default:
				n.update()
			}
		}
	}
	ticker := time.NewTicker(tickPeriod(n.SampleRate))
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.update()
		}
	}
}

// Start attaches callback to the node. The first started node starts the
// network clock.
func (d *networkNode[BufferIDType]) Start(callback func([]int32, []int32)) error {
	n := d.Network
	n.mu.Lock()
	d.callback = callback
	n.mu.Unlock()

	n.once.Do(func() {
		n.wg.Add(1)
		go n.run()
	})
	return nil
}

// Stop detaches the node; the rest of the network keeps running.
func (d *networkNode[BufferIDType]) Stop() {
	d.mu.Lock()
	d.callback = nil
	d.mu.Unlock()
}
