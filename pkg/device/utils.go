package device

import "golang.org/x/exp/rand"

func cleari32(a []int32) {
	for i := range a {
		a[i] = 0
	}
}

func sumi32(a, b, c []int32) {
	for i := range a {
		c[i] = saturatei32(int64(a[i]) + int64(b[i]))
	}
}

func saturatei32(sum int64) int32 {
	if sum > 0x7fffffff {
		return 0x7fffffff
	} else if sum < -0x80000000 {
		return -0x80000000
	}
	return int32(sum)
}

func alloci32(n int) []int32 {
	return make([]int32, n)
}

// noisei32 adds uniform noise with the given peak, 1 being full scale.
func noisei32(a []int32, peak float64, rng *rand.Rand) {
	if peak <= 0 {
		return
	}
	for i := range a {
		n := (2*rng.Float64() - 1) * peak * 0x7fffffff
		a[i] = saturatei32(int64(a[i]) + int64(n))
	}
}
