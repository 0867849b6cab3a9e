package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Device renders streamers. The speaker package is the production device.
type Device interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
}

// speakerDevice forwards to the process-global beep speaker.
type speakerDevice struct{}

func (speakerDevice) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}

func (speakerDevice) Play(s beep.Streamer) {
	speaker.Play(s)
}

// Output is a lazily initialized output device. It is created once and
// shared by every session of the process.
type Output struct {
	dev    Device
	rate   beep.SampleRate
	buffer time.Duration

	mu    sync.Mutex
	ready bool
	inits int
}

// NewOutput wraps dev. Nothing is opened until Resume.
func NewOutput(dev Device, sampleRate int, buffer time.Duration) *Output {
	return &Output{
		dev:    dev,
		rate:   beep.SampleRate(sampleRate),
		buffer: buffer,
	}
}

var (
	speakerOnce   sync.Once
	speakerOutput *Output
)

// SpeakerOutput returns the process-wide speaker output. The first call
// fixes the sample rate and buffer length.
func SpeakerOutput(sampleRate int, buffer time.Duration) *Output {
	speakerOnce.Do(func() {
		speakerOutput = NewOutput(speakerDevice{}, sampleRate, buffer)
	})
	return speakerOutput
}

// Resume makes the device ready to play, initializing it on first use.
// A failed initialization is retried on the next call.
func (o *Output) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}
	o.inits++
	if err := o.dev.Init(o.rate, o.rate.N(o.buffer)); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	o.ready = true
	return nil
}

// Ready reports whether the device has been initialized.
func (o *Output) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// Rate returns the device sample rate.
func (o *Output) Rate() beep.SampleRate {
	return o.rate
}

// Play starts rendering s. Resume must have succeeded.
func (o *Output) Play(s beep.Streamer) {
	o.dev.Play(s)
}
