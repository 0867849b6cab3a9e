package audioio

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrDeviceUnavailable is returned when the input device cannot be
	// acquired (no device, permission denied, backend not compiled in).
	ErrDeviceUnavailable = errors.New("audioio: capture device unavailable")

	// ErrClosed is returned when starting a source after Close.
	ErrClosed = errors.New("audioio: source closed")
)

// Callback receives one device buffer of mono float32 samples, nominally in
// [-1, 1]. The slice is only valid until the callback returns.
type Callback func(in []float32)

// CaptureFrame is the quantized result of one capture callback.
type CaptureFrame struct {
	// Samples contains signed 16-bit PCM samples.
	Samples []int16

	// SampleRate is the capture sample rate.
	SampleRate int
}

// Duration returns the duration of this frame.
func (f *CaptureFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start acquires the device and begins invoking fn once per buffer.
	// A failure to acquire the device wraps ErrDeviceUnavailable.
	Start(ctx context.Context, fn Callback) error

	// Stop halts capture and releases the device.
	// It is safe to call Stop multiple times.
	Stop() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// Callbacks is the total number of buffers delivered.
	Callbacks int64 `json:"callbacks"`

	// SamplesRead is the total number of samples delivered.
	SamplesRead int64 `json:"samples_read"`

	// Overruns is the number of buffers the device reported as dropped.
	Overruns int64 `json:"overruns"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
