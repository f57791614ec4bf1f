// Command wavelink sends and receives short payloads over sound.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"Aethertone/cmd/wavelink/config"
	"Aethertone/pkg/metrics"
	"Aethertone/pkg/modem"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultConfigPath = "configs/wavelink.yaml"

type command struct {
	usage string
	run   func(a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"send":     {"send [-n count] [-interval d] message", runSend},
		"listen":   {"listen [-timeout d]", runListen},
		"loopback": {"loopback [-timeout d] message", runLoopback},
		"dump":     {"dump [-o samples.txt] [-bin waveform.bin] message", runDump},
		"decode":   {"decode [-i recording.bin]", runDecode},
		"play":     {"play [-i waveform.bin]", runPlay},
		"record":   {"record [-o recording.bin] [-d duration]", runRecord},
	}
}

// app carries what every subcommand shares.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	observer modem.Observer
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: wavelink [-config file] <command> [flags]\n\ncommands:\n")
	for _, name := range []string{"send", "listen", "loopback", "dump", "decode", "play", "record"} {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	logger.Info("Configuration loaded",
		slog.String("config_path", *configPath),
		slog.String("device", cfg.Device.Kind),
		slog.Float64("sample_rate", cfg.Device.SampleRate),
		slog.Int("samples_per_frame", cfg.Modem.SamplesPerFrame),
		slog.String("protocol", cfg.Modem.Protocol),
		slog.Int("address", cfg.Link.Address),
	)

	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		stop := a.serveMetrics()
		defer stop()
	}

	if err := cmd.run(a, flag.Args()[1:]); err != nil {
		logger.Error("Command failed", slog.String("command", flag.Arg(0)), slog.Any("error", err))
		logCloser.Close()
		os.Exit(1)
	}
}

// loadConfig falls back to the defaults when the default path is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// serveMetrics registers the engine metrics on a private registry and serves
// them until the returned function is called.
func (a *app) serveMetrics() func() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.observer = metrics.NewCollector(reg)

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         a.cfg.Metrics.Address,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("Metrics server starting", slog.String("address", server.Addr), slog.String("path", a.cfg.Metrics.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("usage: wavelink %s: %w", commands[fs.Name()].usage, err)
	}
	return nil
}
