package fixpoint

import (
	"math"
	"testing"
)

func TestNewFixpoint(t *testing.T) {
	value := int16(12345)
	fp := NewFixpoint(value)
	if fp.Int16() != value {
		t.Errorf("Expected %d, got %d", value, fp.Int16())
	}
}

func TestFixpoint_ToFloat(t *testing.T) {
	a := NewFixpoint(16384) // 0.5 in Q15
	expected := 0.5
	result := a.ToFloat()
	if result != expected {
		t.Errorf("Expected %f, got %f", expected, result)
	}
}

func TestFromFloat(t *testing.T) {
	tests := []struct {
		f        float64
		expected int16
	}{
		{0.5, 16384},
		{-0.5, -16384},
		{1.0, math.MaxInt16},
		{-1.0, math.MinInt16},
		{3.0, math.MaxInt16},
		{math.Inf(-1), math.MinInt16},
	}
	for _, tt := range tests {
		result := FromFloat(tt.f)
		if result.Int16() != tt.expected {
			t.Errorf("FromFloat(%v): Expected %d, got %d", tt.f, tt.expected, result)
		}
	}
}

func TestSliceConversion(t *testing.T) {
	src := []float64{0, 0.25, -0.25, 0.999}
	q := FromFloats(nil, src)
	if len(q) != len(src) {
		t.Fatalf("Expected %d samples, got %d", len(src), len(q))
	}
	for i := range src {
		if back := NewFixpoint(q[i]).ToFloat(); math.Abs(back-src[i]) > 1.0/scale {
			t.Errorf("sample %d: Expected %f, got %f", i, src[i], back)
		}
	}

	// dst is reused when large enough
	buf := make([]int16, 8)
	if out := FromFloats(buf, src); &out[0] != &buf[0] {
		t.Error("Expected dst to be reused")
	}
}
