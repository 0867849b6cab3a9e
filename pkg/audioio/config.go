// Package audioio provides microphone capture for the talkback client.
//
// Capture is callback driven: the device delivers fixed-size buffers of
// float32 samples to a Callback on its own thread, and the callback must
// finish its work before returning. Backends:
//   - PortAudio - cross-platform capture (requires cgo and libportaudio)
//   - Mock - CI/Testing without hardware
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds capture configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (portaudio when compiled in, mock otherwise)
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture sample rate in Hz. It is sent with every frame.
	// Default: 48000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FramesPerBuffer is the number of samples delivered per callback.
	// Default: 256
	FramesPerBuffer int `yaml:"frames_per_buffer" json:"frames_per_buffer"`

	// Channels is the number of capture channels. Only mono is supported.
	Channels int `yaml:"channels" json:"channels"`

	// Device is the input device name, or empty for the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendAuto,
		SampleRate:      48000,
		FramesPerBuffer: 256,
		Channels:        1,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames_per_buffer must be positive, got %d", c.FramesPerBuffer)
	}
	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", c.Channels)
	}
	switch c.Backend {
	case BackendAuto, BackendPortAudio, BackendMock, "":
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}

// BufferDuration returns the wall-clock length of one callback buffer.
func (c *Config) BufferDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.FramesPerBuffer) * time.Second / time.Duration(c.SampleRate)
}
