//go:build !cgo

package audioio

import (
	"fmt"
	"log/slog"
)

const portAudioAvailable = false

// newPortAudioSource returns an error when built without cgo.
func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: portaudio requires cgo", ErrDeviceUnavailable)
}
