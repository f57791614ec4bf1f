package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"Aethertone/cmd/wavelink/config"
	"Aethertone/internel/callbacks"
	"Aethertone/internel/utils"
	"Aethertone/pkg/async"
	"Aethertone/pkg/fixpoint"
	"Aethertone/pkg/layers"
	"Aethertone/pkg/modem"
)

func message(args []string) ([]byte, error) {
	msg := strings.Join(args, " ")
	if msg == "" {
		return nil, errors.New("missing message")
	}
	return []byte(msg), nil
}

func runSend(a *app, args []string) error {
	fs := newFlagSet("send")
	count := fs.Int("n", 1, "number of times to send the message")
	interval := fs.Duration("interval", time.Second, "pause between repetitions")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	msg, err := message(fs.Args())
	if err != nil {
		return err
	}
	if len(msg) > layers.MaxPayload {
		return fmt.Errorf("message of %d bytes exceeds %d", len(msg), layers.MaxPayload)
	}

	link := config.NewDataLink(a.cfg, config.NewDevice(a.cfg), a.logger, a.observer)
	if err := link.Open(); err != nil {
		return fmt.Errorf("open data link: %w", err)
	}
	defer link.Close()

	interrupt := async.Interrupt()
	for i := range *count {
		if i > 0 {
			select {
			case <-time.After(*interval):
			case <-interrupt:
				return nil
			}
		}
		start := time.Now()
		select {
		case err := <-link.SendAsync(msg):
			if err != nil {
				return fmt.Errorf("send #%d: %w", i+1, err)
			}
		case <-interrupt:
			return nil
		}
		a.logger.Info("Payload sent",
			slog.Int("length", len(msg)),
			slog.Int("frames", link.TxDurationFrames()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

func runListen(a *app, args []string) error {
	fs := newFlagSet("listen")
	timeout := fs.Duration("timeout", 0, "give up after this long without a payload, 0 waits forever")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	link := config.NewDataLink(a.cfg, config.NewDevice(a.cfg), a.logger, a.observer)
	if err := link.Open(); err != nil {
		return fmt.Errorf("open data link: %w", err)
	}
	defer link.Close()

	fmt.Fprintln(os.Stderr, "Listening, press Enter to stop")
	interrupt, enter := async.Interrupt(), async.EnterKey()
	for {
		var expired <-chan time.Time
		if *timeout > 0 {
			expired = time.After(*timeout)
		}
		select {
		case data, ok := <-link.ReceiveAsync():
			if !ok {
				return layers.ErrClosed
			}
			a.logger.Info("Payload received", slog.Int("length", len(data)))
			fmt.Printf("%s\n", data)
		case <-expired:
			return layers.ErrTimeout
		case <-interrupt:
			return nil
		case <-enter:
			return nil
		}
	}
}

// runLoopback sends a message and waits for the same device to hear it.
func runLoopback(a *app, args []string) error {
	fs := newFlagSet("loopback")
	timeout := fs.Duration("timeout", 10*time.Second, "maximum wait for the echo")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	msg, err := message(fs.Args())
	if err != nil {
		return err
	}

	p := config.NewPhysicalLayer(a.cfg, config.NewDevice(a.cfg), a.logger, a.observer)
	if err := p.Open(); err != nil {
		return fmt.Errorf("open physical layer: %w", err)
	}
	defer p.Close()

	start := time.Now()
	res, err := async.AwaitTimeout(async.Gather2(p.SendAsync(msg), p.ReceiveAsync()), *timeout)
	if err != nil {
		return fmt.Errorf("no echo within %v: %w", *timeout, err)
	}
	sent, received := res.R1, res.R2
	if sent != nil {
		return fmt.Errorf("send: %w", sent)
	}
	if !bytes.Equal(received, msg) {
		return fmt.Errorf("echo mismatch: sent %q, received %q", msg, received)
	}
	a.logger.Info("Echo received",
		slog.Int("length", len(received)),
		slog.Int("frames", p.TxDurationFrames()),
		slog.Duration("elapsed", time.Since(start)),
	)
	fmt.Printf("%s\n", received)
	return nil
}

// runDump renders a message offline: the Q15 amplitudes as text and,
// optionally, the device waveform for play.
func runDump(a *app, args []string) error {
	fs := newFlagSet("dump")
	txt := fs.String("o", "samples.txt", "text file of Q15 amplitudes")
	bin := fs.String("bin", "", "binary int32 waveform, empty to skip")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	msg, err := message(fs.Args())
	if err != nil {
		return err
	}

	e, err := modem.NewEngine(a.cfg.ModemConfig(), modem.WithLogger(a.logger), modem.WithObserver(a.observer))
	if err != nil {
		return err
	}
	if err := e.Init(msg, a.cfg.TxProtocol(), a.cfg.Modem.Volume); err != nil {
		return err
	}
	var raw []byte
	sink := modem.SinkFunc(func(b []byte) {
		raw = append(raw, b...)
	})
	for e.Send(sink) {
	}

	q15 := e.TakeTxAmplitudeData16()
	if err := utils.WriteTxt(*txt, q15, func(v int16) float64 {
		return fixpoint.NewFixpoint(v).ToFloat()
	}); err != nil {
		return err
	}
	a.logger.Info("Amplitudes written", slog.String("file", *txt), slog.Int("samples", len(q15)))

	if *bin != "" {
		waveform := modem.Float64ToInt32(modem.BytesToFloat64(nil, raw, e.SampleSizeBytesOut()))
		if err := utils.WriteBinary(*bin, waveform); err != nil {
			return err
		}
		a.logger.Info("Waveform written", slog.String("file", *bin), slog.Int("samples", len(waveform)))
	}
	return nil
}

// runDecode runs the receiver over a recorded int32 track.
func runDecode(a *app, args []string) error {
	fs := newFlagSet("decode")
	in := fs.String("i", "recording.bin", "binary int32 recording")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	track, err := utils.ReadBinary[int32](*in)
	if err != nil {
		return err
	}
	// trailing silence completes a reception cut off by the end of the file
	track = append(track, make([]int32, int(a.cfg.Device.SampleRate))...)

	e, err := modem.NewEngine(a.cfg.ModemConfig(), modem.WithLogger(a.logger), modem.WithObserver(a.observer))
	if err != nil {
		return err
	}
	pending := modem.AppendFloat64(nil, modem.Int32ToFloat64(track), e.SampleSizeBytesIn())
	src := modem.SourceFunc(func(buf []byte) int {
		n := copy(buf, pending)
		pending = pending[n:]
		return n
	})

	found := 0
	frameBytes := e.SamplesPerFrameIn() * e.SampleSizeBytesIn()
	for len(pending) >= frameBytes {
		e.Receive(src)
		if data := e.TakeRxData(); data != nil {
			found++
			a.logger.Info("Payload decoded", slog.Int("length", len(data)), slog.String("protocol", e.RxProtocol().Name))
			fmt.Printf("%s\n", data)
		}
	}
	if found == 0 {
		return fmt.Errorf("no payload in %s", *in)
	}
	return nil
}

func runPlay(a *app, args []string) error {
	fs := newFlagSet("play")
	in := fs.String("i", "waveform.bin", "binary int32 waveform")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	track, err := utils.ReadBinary[int32](*in)
	if err != nil {
		return err
	}
	player := &callbacks.Player{Track: track}
	dev := config.NewDevice(a.cfg)
	if err := dev.Start(player.Update); err != nil {
		return err
	}
	defer dev.Stop()

	select {
	case <-player.Done():
		a.logger.Info("Playback finished", slog.Int("samples", len(track)))
	case <-async.Interrupt():
	}
	return nil
}

func runRecord(a *app, args []string) error {
	fs := newFlagSet("record")
	path := fs.String("o", "recording.bin", "binary int32 recording")
	duration := fs.Duration("d", 0, "recording length, 0 records until Enter")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	recorder := &callbacks.Recorder{}
	dev := config.NewDevice(a.cfg)
	if err := dev.Start(func(in, out []int32) {
		recorder.Update(in, out)
		clear(out)
	}); err != nil {
		return err
	}

	var expired <-chan time.Time
	if *duration > 0 {
		expired = time.After(*duration)
	} else {
		fmt.Fprintln(os.Stderr, "Recording, press Enter to stop")
	}
	select {
	case <-expired:
	case <-async.EnterKey():
	case <-async.Interrupt():
	}
	dev.Stop()

	track := recorder.Track()
	if err := utils.WriteBinary(*path, track); err != nil {
		return err
	}
	a.logger.Info("Recording written", slog.String("file", *path), slog.Int("samples", len(track)))
	return nil
}
