package fixpoint

import "math"

// Fixpoint is a Q15 sample: 1.0 maps to 32768 and values saturate to the
// int16 range.
type Fixpoint int16

const scale = 32768.0

func NewFixpoint(value int16) Fixpoint {
	return Fixpoint(value)
}

func (f Fixpoint) Int16() int16 {
	return int16(f)
}

func (f Fixpoint) ToFloat() float64 {
	return float64(f) / scale
}

func FromFloat(f float64) Fixpoint {
	return saturate(int32(math.Round(math.Max(-2, math.Min(2, f)) * scale)))
}

func saturate(v int32) Fixpoint {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return Fixpoint(v)
}

// FromFloats converts src into dst, growing dst if needed.
func FromFloats(dst []int16, src []float64) []int16 {
	if cap(dst) < len(src) {
		dst = make([]int16, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = FromFloat(v).Int16()
	}
	return dst
}
