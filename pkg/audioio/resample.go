package audioio

import (
	"math"

	"github.com/faiface/beep"
)

// resampleQuality is the interpolation quality passed to beep.Resample.
const resampleQuality = 4

// Resample converts mono PCM16 audio between sample rates with beep's
// interpolating resampler. The result has len(samples)*toRate/fromRate
// samples.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	out := make([]int16, 0, n)

	rs := beep.Resample(resampleQuality, beep.SampleRate(fromRate), beep.SampleRate(toRate), &pcm16Streamer{samples: samples})
	buf := make([][2]float64, 512)
	for len(out) < n {
		k, ok := rs.Stream(buf)
		for _, f := range buf[:k] {
			if len(out) == n {
				break
			}
			out = append(out, toPCM16(f[0]))
		}
		if !ok {
			break
		}
	}
	for len(out) < n {
		out = append(out, samples[len(samples)-1])
	}
	return out
}

// pcm16Streamer streams mono PCM16 as a beep.Streamer.
type pcm16Streamer struct {
	samples []int16
	pos     int
}

func (s *pcm16Streamer) Stream(buf [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for i := range buf {
		if s.pos >= len(s.samples) {
			break
		}
		v := float64(s.samples[s.pos]) / 32768
		buf[i][0], buf[i][1] = v, v
		s.pos++
		n++
	}
	return n, true
}

func (s *pcm16Streamer) Err() error { return nil }

func toPCM16(v float64) int16 {
	v = math.Round(v * 32768)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// Level returns the RMS level of samples, between 0.0 and 1.0.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
