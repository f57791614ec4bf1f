package callbacks

import (
	"reflect"
	"testing"
	"time"

	"Aethertone/pkg/async"
)

func TestPlayer(t *testing.T) {
	p := Player{Track: []int32{1, 2, 3, 4, 5}}
	out := make([]int32, 3)

	p.Update(nil, out)
	if !reflect.DeepEqual(out, []int32{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", out)
	}
	select {
	case <-p.Done():
		t.Fatal("Player finished early")
	default:
	}

	p.Update(nil, out)
	if !reflect.DeepEqual(out, []int32{4, 5, 0}) {
		t.Errorf("Expected [4 5 0], got %v", out)
	}
	if _, err := async.AwaitTimeout(p.Done(), time.Second); err != nil {
		t.Fatal("Player did not report completion")
	}

	p.Update(nil, out)
	if !reflect.DeepEqual(out, []int32{0, 0, 0}) {
		t.Errorf("Expected silence, got %v", out)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Update([]int32{1, 2}, nil)
	r.Update([]int32{3}, nil)
	if got := r.Track(); !reflect.DeepEqual(got, []int32{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}
}
