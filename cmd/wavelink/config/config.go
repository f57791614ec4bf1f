// Package config loads the YAML configuration of the wavelink command and
// builds the device and layers it describes.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"Aethertone/pkg/device"
	"Aethertone/pkg/layers"
	"Aethertone/pkg/modem"
	"Aethertone/pkg/protocol"

	"gopkg.in/yaml.v3"
)

const (
	DeviceLoopback = "loopback"
	DeviceASIO     = "asio"
	DeviceJACK     = "jack"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Modem   ModemConfig   `yaml:"modem"`
	Link    LinkConfig    `yaml:"link"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type DeviceConfig struct {
	Kind       string  `yaml:"kind"`
	SampleRate float64 `yaml:"sample_rate"`

	// asio
	DeviceName string `yaml:"device_name"`
	InChannel  int    `yaml:"in_channel"`
	OutChannel int    `yaml:"out_channel"`

	// jack
	ClientName   string `yaml:"client_name"`
	CapturePort  string `yaml:"capture_port"`
	PlaybackPort string `yaml:"playback_port"`

	// loopback
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
	Seed           uint64  `yaml:"seed"`
}

type ModemConfig struct {
	SamplesPerFrame int    `yaml:"samples_per_frame"`
	SampleFormat    string `yaml:"sample_format"` // i16 or f32
	Protocol        string `yaml:"protocol"`
	Volume          int    `yaml:"volume"`

	InputBufferSize   int `yaml:"input_buffer_size"`
	OutputBufferSize  int `yaml:"output_buffer_size"`
	ReceiveBufferSize int `yaml:"receive_buffer_size"`
}

type LinkConfig struct {
	Address    int `yaml:"address"`
	BufferSize int `yaml:"buffer_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Default is a noiseless loopback at the base rate with the default
// protocol.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Kind:       DeviceLoopback,
			SampleRate: modem.BaseSampleRate,
			InChannel:  0,
			OutChannel: 0,
			ClientName: "wavelink",
		},
		Modem: ModemConfig{
			SamplesPerFrame:   modem.MaxSamplesPerFrame,
			SampleFormat:      "f32",
			Protocol:          protocol.Default().Name,
			Volume:            layers.DefaultVolume,
			InputBufferSize:   64,
			OutputBufferSize:  4,
			ReceiveBufferSize: 16,
		},
		Link: LinkConfig{
			Address:    1,
			BufferSize: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}

// Load reads path on top of Default, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}
	if err := c.Modem.Validate(); err != nil {
		return fmt.Errorf("modem config: %w", err)
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	return nil
}

func (d *DeviceConfig) Validate() error {
	switch d.Kind {
	case DeviceLoopback, DeviceASIO, DeviceJACK:
	default:
		return fmt.Errorf("kind must be one of %s, %s, %s, got %q", DeviceLoopback, DeviceASIO, DeviceJACK, d.Kind)
	}
	if d.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %g", d.SampleRate)
	}
	if d.Kind == DeviceASIO && d.DeviceName == "" {
		return fmt.Errorf("device_name cannot be empty for an asio device")
	}
	if d.InChannel < 0 || d.OutChannel < 0 {
		return fmt.Errorf("channels cannot be negative, got %d and %d", d.InChannel, d.OutChannel)
	}
	if d.Kind == DeviceJACK && d.ClientName == "" {
		return fmt.Errorf("client_name cannot be empty for a jack device")
	}
	if d.NoiseAmplitude < 0 || d.NoiseAmplitude > 1 {
		return fmt.Errorf("noise_amplitude must be between 0 and 1, got %g", d.NoiseAmplitude)
	}
	return nil
}

func (m *ModemConfig) Validate() error {
	if _, err := m.sampleSize(); err != nil {
		return err
	}
	if _, _, ok := protocol.ByName(m.Protocol); !ok {
		return fmt.Errorf("unknown protocol %q", m.Protocol)
	}
	if m.Volume < 1 || m.Volume > 100 {
		return fmt.Errorf("volume must be between 1 and 100, got %d", m.Volume)
	}
	if m.InputBufferSize < 1 {
		return fmt.Errorf("input_buffer_size must be at least 1, got %d", m.InputBufferSize)
	}
	if m.OutputBufferSize < 0 || m.ReceiveBufferSize < 0 {
		return fmt.Errorf("buffer sizes cannot be negative, got %d and %d", m.OutputBufferSize, m.ReceiveBufferSize)
	}
	cfg := modem.Config{
		SampleRateIn:       modem.BaseSampleRate,
		SampleRateOut:      modem.BaseSampleRate,
		SamplesPerFrame:    m.SamplesPerFrame,
		SampleSizeBytesIn:  modem.SampleFormatF32,
		SampleSizeBytesOut: modem.SampleFormatF32,
	}
	return cfg.Validate()
}

func (m *ModemConfig) sampleSize() (int, error) {
	switch strings.ToLower(m.SampleFormat) {
	case "i16":
		return modem.SampleFormatI16, nil
	case "f32":
		return modem.SampleFormatF32, nil
	default:
		return 0, fmt.Errorf("sample_format must be i16 or f32, got %q", m.SampleFormat)
	}
}

func (l *LinkConfig) Validate() error {
	if l.Address < 0 || l.Address > 0xff {
		return fmt.Errorf("address must be between 0 and 255, got %d", l.Address)
	}
	if l.BufferSize < 0 {
		return fmt.Errorf("buffer_size cannot be negative, got %d", l.BufferSize)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("path must start with /, got %q", m.Path)
	}
	return nil
}

// ModemConfig returns the engine configuration for the configured device.
// Both directions run at the device rate.
func (c *Config) ModemConfig() modem.Config {
	size, _ := c.Modem.sampleSize()
	return modem.Config{
		SampleRateIn:       c.Device.SampleRate,
		SampleRateOut:      c.Device.SampleRate,
		SamplesPerFrame:    c.Modem.SamplesPerFrame,
		SampleSizeBytesIn:  size,
		SampleSizeBytesOut: size,
	}
}

func (c *Config) TxProtocol() protocol.TxProtocol {
	p, _, _ := protocol.ByName(c.Modem.Protocol)
	return p
}

func NewDevice(c *Config) device.Device {
	switch c.Device.Kind {
	case DeviceASIO:
		return &device.ASIOMono{
			DeviceName: c.Device.DeviceName,
			SampleRate: c.Device.SampleRate,
			InChannel:  c.Device.InChannel,
			OutChannel: c.Device.OutChannel,
		}
	case DeviceJACK:
		return &device.JACK{
			ClientName:   c.Device.ClientName,
			CapturePort:  c.Device.CapturePort,
			PlaybackPort: c.Device.PlaybackPort,
		}
	default:
		return &device.Loopback{
			SampleRate:     c.Device.SampleRate,
			NoiseAmplitude: c.Device.NoiseAmplitude,
			Seed:           c.Device.Seed,
		}
	}
}

// NewPhysicalLayer wires dev into a physical layer; the caller opens it.
func NewPhysicalLayer(c *Config, dev device.Device, logger *slog.Logger, observer modem.Observer) *layers.PhysicalLayer {
	p := &layers.PhysicalLayer{}
	c.setupPhysical(p, dev, logger, observer)
	return p
}

func NewDataLink(c *Config, dev device.Device, logger *slog.Logger, observer modem.Observer) *layers.NaiveDataLinkLayer {
	l := &layers.NaiveDataLinkLayer{
		Address:    byte(c.Link.Address),
		BufferSize: c.Link.BufferSize,
	}
	c.setupPhysical(&l.PhysicalLayer, dev, logger, observer)
	return l
}

func (c *Config) setupPhysical(p *layers.PhysicalLayer, dev device.Device, logger *slog.Logger, observer modem.Observer) {
	p.Device = dev
	p.Config = c.ModemConfig()
	p.Protocol = c.TxProtocol()
	p.Volume = c.Modem.Volume
	p.InputBufferSize = c.Modem.InputBufferSize
	p.OutputBufferSize = c.Modem.OutputBufferSize
	p.ReceiveBufferSize = c.Modem.ReceiveBufferSize
	p.Logger = logger
	p.Observer = observer
}

// NewLogger builds the handler described by the logging section. The
// returned closer releases a log file, if one was opened.
func NewLogger(cfg LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output io.WriteCloser
	switch cfg.Output {
	case "stderr", "":
		output = nopCloser{os.Stderr}
	case "stdout":
		output = nopCloser{os.Stdout}
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		output = file
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler), output, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
