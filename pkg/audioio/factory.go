package audioio

import (
	"fmt"
	"log/slog"
	"slices"
)

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto || backend == "" {
		backend = detectBestBackend()
	}
	if !slices.Contains(AvailableBackends(), backend) {
		return nil, fmt.Errorf("%w: %s backend not built in (available: %v)",
			ErrDeviceUnavailable, backend, AvailableBackends())
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"frames_per_buffer", cfg.FramesPerBuffer,
		"device", cfg.Device,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger, WithSilence()), nil
	case BackendPortAudio:
		return newPortAudioSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for this build.
func detectBestBackend() Backend {
	if portAudioAvailable {
		return BackendPortAudio
	}
	return BackendMock
}

// AvailableBackends returns the list of backends available in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if portAudioAvailable {
		backends = append(backends, BackendPortAudio)
	}
	return backends
}
