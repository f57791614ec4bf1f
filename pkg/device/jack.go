//go:build cgo && !windows

package device

import (
	"fmt"

	"github.com/xthexder/go-jack"
)

// JACK registers a mono client on a running JACK server and optionally
// connects it to the given system ports.
type JACK struct {
	ClientName   string
	CapturePort  string // e.g. system:capture_1, empty to leave unconnected
	PlaybackPort string // e.g. system:playback_1

	client  *jack.Client
	in, out *jack.Port
	inBuf   []int32
	outBuf  []int32
}

func (j *JACK) Start(callback func([]int32, []int32)) error {
	client, status := jack.ClientOpen(j.ClientName, jack.NoStartServer)
	if client == nil {
		return fmt.Errorf("%w: jack client %q, status %d", ErrOpen, j.ClientName, status)
	}

	j.in = client.PortRegister("input", jack.DEFAULT_AUDIO_TYPE, jack.PortIsInput, 0)
	j.out = client.PortRegister("output", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)

	process := func(nframes uint32) int {
		inBuffer := j.in.GetBuffer(nframes)
		outBuffer := j.out.GetBuffer(nframes)

		j.inBuf = growi32(j.inBuf, len(inBuffer))
		j.outBuf = growi32(j.outBuf, len(outBuffer))
		for i, s := range inBuffer {
			j.inBuf[i] = saturatei32(int64(float64(s) * 0x7fffffff))
		}
		cleari32(j.outBuf)

		callback(j.inBuf, j.outBuf)

		for i, v := range j.outBuf {
			outBuffer[i] = jack.AudioSample(float64(v) / 0x7fffffff)
		}
		return 0
	}

	if code := client.SetProcessCallback(process); code != 0 {
		client.Close()
		return fmt.Errorf("%w: failed to set process callback, code %d", ErrOpen, code)
	}
	if code := client.Activate(); code != 0 {
		client.Close()
		return fmt.Errorf("%w: failed to activate client, code %d", ErrOpen, code)
	}

	if j.CapturePort != "" {
		client.ConnectPorts(client.GetPortByName(j.CapturePort), j.in)
	}
	if j.PlaybackPort != "" {
		client.ConnectPorts(j.out, client.GetPortByName(j.PlaybackPort))
	}
	j.client = client
	return nil
}

func (j *JACK) Stop() {
	if j.client != nil {
		j.client.Close()
		j.client = nil
	}
}

func growi32(a []int32, n int) []int32 {
	if cap(a) < n {
		return alloci32(n)
	}
	return a[:n]
}
