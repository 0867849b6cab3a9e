package loopback

import (
	"time"

	"github.com/teslashibe/go-talkback/pkg/protocol"
)

// turn accumulates captured audio until it spans length.
type turn struct {
	length  time.Duration
	rate    int
	samples []int16
}

// add appends a frame and reports whether the turn is complete.
// A change of sample rate discards what was buffered.
func (t *turn) add(f protocol.Frame) bool {
	if f.SampleRate <= 0 {
		return false
	}
	if t.rate != f.SampleRate {
		t.rate = f.SampleRate
		t.samples = t.samples[:0]
	}
	t.samples = append(t.samples, f.Samples...)
	return t.duration() >= t.length
}

func (t *turn) duration() time.Duration {
	if t.rate == 0 {
		return 0
	}
	return time.Duration(len(t.samples)) * time.Second / time.Duration(t.rate)
}

// take returns the buffered audio and resets the turn.
func (t *turn) take() ([]int16, int) {
	out := t.samples
	t.samples = nil
	return out, t.rate
}
