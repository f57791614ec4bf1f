package async

import (
	"testing"
	"time"
)

func TestSignal_Notify(t *testing.T) {
	var s Signal[struct{}]
	if !s.Notify() {
		t.Error("Expected first notify to succeed")
	}
	if s.Notify() {
		t.Error("Expected second notify to report a pending signal")
	}

	select {
	case <-s.Signal():
		// Success
	default:
		t.Error("Expected signal to be fired")
	}
}

func TestSignal_Await(t *testing.T) {
	var s Signal[struct{}]

	select {
	case <-s.Signal():
		t.Error("Expected channel to be open")
	default:
		// Success
	}
}

func TestSignal_NotifyAndAwait(t *testing.T) {
	var s Signal[int]

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.NotifyValue(42)
	}()

	select {
	case val := <-s.Signal():
		if val != 42 {
			t.Errorf("Expected 42 but got %d", val)
		}
		// Success
	case <-time.After(time.Second):
		t.Error("Expected to receive signal within 1s")
	}
}

func TestSignal_Reset(t *testing.T) {
	var s Signal[int]
	s.NotifyValue(1)
	s.Reset()
	if _, err := AwaitTimeout(s.Signal(), 10*time.Millisecond); err != ErrTimeout {
		t.Errorf("Expected pending value to be discarded, got %v", err)
	}
}
