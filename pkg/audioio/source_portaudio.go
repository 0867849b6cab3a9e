//go:build cgo

package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portAudioAvailable = true

// PortAudioSource captures audio through PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stream  *portaudio.Stream

	// Stats
	callbacks   atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
	active      atomic.Bool
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &PortAudioSource{cfg: cfg, logger: logger}, nil
}

// Start initializes PortAudio, opens the input stream and starts it.
func (p *PortAudioSource) Start(ctx context.Context, fn Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize portaudio: %w", ErrDeviceUnavailable, err)
	}

	process := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if flags&portaudio.InputOverflow != 0 {
			p.overruns.Add(1)
		}
		p.callbacks.Add(1)
		p.samplesRead.Add(int64(len(in)))
		fn(in)
	}

	stream, err := p.open(process)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: start stream: %w", ErrDeviceUnavailable, err)
	}

	p.stream = stream
	p.running = true
	p.active.Store(true)

	p.logger.Info("portaudio source started",
		"sample_rate", p.cfg.SampleRate,
		"frames_per_buffer", p.cfg.FramesPerBuffer,
		"device", p.cfg.Device,
	)

	return nil
}

func (p *PortAudioSource) open(process func([]float32, portaudio.StreamCallbackTimeInfo, portaudio.StreamCallbackFlags)) (*portaudio.Stream, error) {
	if p.cfg.Device == "" {
		stream, err := portaudio.OpenDefaultStream(p.cfg.Channels, 0, float64(p.cfg.SampleRate), p.cfg.FramesPerBuffer, process)
		if err != nil {
			return nil, fmt.Errorf("open default stream: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name != p.cfg.Device || d.MaxInputChannels < p.cfg.Channels {
			continue
		}
		params := portaudio.LowLatencyParameters(d, nil)
		params.Input.Channels = p.cfg.Channels
		params.SampleRate = float64(p.cfg.SampleRate)
		params.FramesPerBuffer = p.cfg.FramesPerBuffer
		stream, err := portaudio.OpenStream(params, process)
		if err != nil {
			return nil, fmt.Errorf("open stream on %q: %w", d.Name, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("no input device named %q", p.cfg.Device)
}

// Stop stops and closes the stream and releases PortAudio.
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	p.active.Store(false)

	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("stop stream: %w", err)
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close stream: %w", err)
	}
	p.stream = nil
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("terminate portaudio: %w", err)
	}

	p.logger.Info("portaudio source stopped")
	return firstErr
}

// Config returns the audio configuration.
func (p *PortAudioSource) Config() Config {
	return p.cfg
}

// Name returns "portaudio".
func (p *PortAudioSource) Name() string {
	return string(BackendPortAudio)
}

// Close releases resources.
func (p *PortAudioSource) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.Stop()
}

// Stats returns source statistics. It does not block and may be called
// from the capture callback.
func (p *PortAudioSource) Stats() SourceStats {
	return SourceStats{
		Callbacks:   p.callbacks.Load(),
		SamplesRead: p.samplesRead.Load(),
		Overruns:    p.overruns.Load(),
		Running:     p.active.Load(),
		Backend:     p.Name(),
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)
