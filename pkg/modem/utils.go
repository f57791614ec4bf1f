package modem

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// resample linearly maps src onto len(dst) evenly spaced points spanning
// the same time interval.
func resample(dst, src []float64) {
	if len(dst) == len(src) {
		copy(dst, src)
		return
	}
	if len(src) == 0 {
		clear(dst)
		return
	}
	step := float64(len(src)) / float64(len(dst))
	for i := range dst {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(src)-1 {
			dst[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(j)
		dst[i] = src[j]*(1-frac) + src[j+1]*frac
	}
}
