package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"Aethertone/cmd/wavelink/config"
	"Aethertone/internel/utils"
)

func testApp() *app {
	return &app{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDumpThenDecode(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "samples.txt")
	bin := filepath.Join(dir, "waveform.bin")
	a := testApp()

	if err := runDump(a, []string{"-o", txt, "-bin", bin, "hello", "wavelink"}); err != nil {
		t.Fatalf("dump: %v", err)
	}

	amplitudes, err := utils.ReadTxt[float64](txt)
	if err != nil {
		t.Fatal(err)
	}
	waveform, err := utils.ReadBinary[int32](bin)
	if err != nil {
		t.Fatal(err)
	}
	if len(amplitudes) == 0 || len(amplitudes) != len(waveform) {
		t.Fatalf("Expected matching non-empty dumps, got %d and %d samples", len(amplitudes), len(waveform))
	}
	for i, v := range amplitudes {
		if v < -1 || v > 1 {
			t.Fatalf("amplitude %d out of range: %v", i, v)
		}
	}

	if err := runDecode(a, []string{"-i", bin}); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestDecodeRecordingStartingMidFrame(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "waveform.bin")
	a := testApp()
	if err := runDump(a, []string{"-o", filepath.Join(dir, "samples.txt"), "-bin", bin, "late start"}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	waveform, err := utils.ReadBinary[int32](bin)
	if err != nil {
		t.Fatal(err)
	}

	// the recording starts 300 samples before the marker with no other lead-in
	recording := append(make([]int32, 300), waveform...)
	rec := filepath.Join(dir, "recording.bin")
	if err := utils.WriteBinary(rec, recording); err != nil {
		t.Fatal(err)
	}
	if err := runDecode(a, []string{"-i", rec}); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestDecodeSilence(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "silence.bin")
	if err := utils.WriteBinary(bin, make([]int32, 48000)); err != nil {
		t.Fatal(err)
	}
	if err := runDecode(testApp(), []string{"-i", bin}); err == nil {
		t.Error("Expected no payload in silence")
	}
}

func TestCommandArguments(t *testing.T) {
	a := testApp()
	if err := runDump(a, nil); err == nil || !strings.Contains(err.Error(), "missing message") {
		t.Errorf("Expected missing message error, got %v", err)
	}
	if err := runSend(a, []string{strings.Repeat("x", 200)}); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Expected length error, got %v", err)
	}
	if err := runListen(a, []string{"-bogus"}); err == nil || !strings.Contains(err.Error(), "usage: wavelink listen") {
		t.Errorf("Expected usage error, got %v", err)
	}
}
