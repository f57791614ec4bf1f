package modem

import (
	"encoding/binary"
	"math"

	"Aethertone/pkg/fixpoint"
)

const (
	SampleFormatI16 = 2 // signed 16 bit little endian
	SampleFormatF32 = 4 // 32 bit float little endian
)

// Convert []int32 to []float64
func Int32ToFloat64(input []int32) []float64 {
	output := make([]float64, len(input))
	for i, v := range input {
		output[i] = float64(v) / 0x7fffffff
	}
	return output
}

// Convert []float64 to []int32
func Float64ToInt32(input []float64) []int32 {
	output := make([]int32, len(input))
	for i, v := range input {
		output[i] = int32(max(-1, min(1, v)) * 0x7fffffff)
	}
	return output
}

// BytesToFloat64 decodes raw samples of the given width into dst.
func BytesToFloat64(dst []float64, src []byte, width int) []float64 {
	n := len(src) / width
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		b := src[i*width:]
		switch width {
		case SampleFormatI16:
			dst[i] = fixpoint.NewFixpoint(int16(binary.LittleEndian.Uint16(b))).ToFloat()
		case SampleFormatF32:
			dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	}
	return dst
}

// AppendFloat64 encodes samples with the given width and appends them to dst.
func AppendFloat64(dst []byte, src []float64, width int) []byte {
	for _, v := range src {
		switch width {
		case SampleFormatI16:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(fixpoint.FromFloat(v).Int16()))
		case SampleFormatF32:
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
		}
	}
	return dst
}
