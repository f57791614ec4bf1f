package layers

import (
	"errors"
	"reflect"
	"runtime"
	"testing"
	"time"

	"Aethertone/pkg/device"
	"Aethertone/pkg/modem"
	"Aethertone/pkg/protocol"

	"golang.org/x/exp/rand"
)

// fakeRate runs simulated devices four times faster than real time.
const fakeRate = 4 * modem.BaseSampleRate

func TestPhysicalLayer(t *testing.T) {

	fastest, _ := protocol.ByID(protocol.Fastest)
	var physicalLayer = PhysicalLayer{
		Device:            &device.Loopback{SampleRate: fakeRate},
		Protocol:          fastest,
		InputBufferSize:   256,
		OutputBufferSize:  1,
		ReceiveBufferSize: 4,
	}

	if err := physicalLayer.Open(); err != nil {
		t.Fatal(err)
	}
	defer physicalLayer.Close()

	inputBytes := make([]byte, 24)
	rand.New(rand.NewSource(1)).Read(inputBytes)

	if err := physicalLayer.Send(inputBytes); err != nil {
		t.Fatalf("Send: %v", err)
	}

	output, err := physicalLayer.ReceiveWithTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	t.Logf("len(inputBytes) = %d, len(output) = %d", len(inputBytes), len(output))
	if !reflect.DeepEqual(inputBytes, output) {
		t.Errorf("inputBytes and outputBytes are different")
	}
}

func TestPhysicalLayerRejectsOversizedPayload(t *testing.T) {
	physicalLayer := PhysicalLayer{Device: &device.Loopback{SampleRate: fakeRate}}
	if err := physicalLayer.Open(); err != nil {
		t.Fatal(err)
	}
	defer physicalLayer.Close()

	err := physicalLayer.Send(make([]byte, modem.MaxLength+1))
	if !errors.Is(err, modem.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestPhysicalLayerDeviceFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("ASIO drivers may be installed")
	}
	physicalLayer := PhysicalLayer{Device: &device.ASIOMono{DeviceName: "missing"}}
	if err := physicalLayer.Open(); !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestReceiveTimeout(t *testing.T) {
	physicalLayer := PhysicalLayer{Device: &device.Loopback{SampleRate: fakeRate}}
	if err := physicalLayer.Open(); err != nil {
		t.Fatal(err)
	}
	defer physicalLayer.Close()

	if _, err := physicalLayer.ReceiveWithTimeout(20 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestPhysicalLayerClose(t *testing.T) {
	physicalLayer := PhysicalLayer{
		Device:           &device.Loopback{SampleRate: fakeRate},
		OutputBufferSize: 1,
	}
	if err := physicalLayer.Open(); err != nil {
		t.Fatal(err)
	}

	// senders racing Close must all be answered
	results := make(chan error, 8)
	for i := range cap(results) {
		go func() {
			results <- physicalLayer.Send([]byte{byte(i)})
		}()
	}
	time.Sleep(10 * time.Millisecond)
	physicalLayer.Close()
	physicalLayer.Close()

	for range cap(results) {
		select {
		case err := <-results:
			if err != nil && !errors.Is(err, ErrClosed) {
				t.Errorf("Expected nil or ErrClosed, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Send did not return after Close")
		}
	}

	if err := physicalLayer.Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close: expected ErrClosed, got %v", err)
	}
	if _, err := physicalLayer.ReceiveWithTimeout(time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive after Close: expected ErrClosed, got %v", err)
	}
}
