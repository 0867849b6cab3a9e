package playback

import (
	"fmt"

	"github.com/faiface/beep"
)

// pcmStreamer plays interleaved float32 samples held in memory.
type pcmStreamer struct {
	samples  []float32
	channels int
	pos      int // in frames
}

func newPCMStreamer(samples []float32, channels int) *pcmStreamer {
	return &pcmStreamer{samples: samples, channels: channels}
}

func (p *pcmStreamer) Stream(out [][2]float64) (int, bool) {
	total := p.Len()
	if p.pos >= total {
		return 0, false
	}
	n := 0
	for n < len(out) && p.pos < total {
		i := p.pos * p.channels
		left := float64(p.samples[i])
		right := left
		if p.channels > 1 {
			right = float64(p.samples[i+1])
		}
		out[n] = [2]float64{left, right}
		n++
		p.pos++
	}
	return n, true
}

func (p *pcmStreamer) Err() error { return nil }

func (p *pcmStreamer) Len() int {
	if p.channels == 0 {
		return 0
	}
	return len(p.samples) / p.channels
}

func (p *pcmStreamer) Position() int { return p.pos }

func (p *pcmStreamer) Seek(pos int) error {
	if pos < 0 || pos > p.Len() {
		return fmt.Errorf("seek position %d out of range [0, %d]", pos, p.Len())
	}
	p.pos = pos
	return nil
}

func (p *pcmStreamer) Close() error { return nil }

var _ beep.StreamSeekCloser = (*pcmStreamer)(nil)
