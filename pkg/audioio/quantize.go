package audioio

import "math"

// QuantizeSample maps a float sample to PCM16. Input is clamped to [-1, 1];
// negative values scale by 32768 and the rest by 32767 so both ends of the
// int16 range are reachable.
func QuantizeSample(s float32) int16 {
	v := float64(s)
	switch {
	case v != v: // NaN
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	if v < 0 {
		return int16(math.Round(v * 32768))
	}
	return int16(math.Round(v * 32767))
}

// Quantize converts a float buffer to PCM16, reusing dst when it is large
// enough.
func Quantize(dst []int16, in []float32) []int16 {
	if cap(dst) < len(in) {
		dst = make([]int16, len(in))
	}
	dst = dst[:len(in)]
	for i, s := range in {
		dst[i] = QuantizeSample(s)
	}
	return dst
}
