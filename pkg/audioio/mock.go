package audioio

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// Buffers are pushed with Emit, or generated on a ticker when configured
// with WithSineWave or WithSilence.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	callback Callback
	stopCh   chan struct{}
	startErr error

	// Stats
	callbacks   atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	// Synthetic audio generation
	generate  bool
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave makes the mock generate a sine wave at device cadence.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithSilence makes the mock generate silent buffers at device cadence.
func WithSilence() MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
		m.frequency = 0
	}
}

// WithStartError makes Start fail, simulating a missing or denied device.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins delivering buffers to fn.
func (m *MockSource) Start(ctx context.Context, fn Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.callback = fn
	m.stopCh = make(chan struct{})

	if m.generate {
		go m.generateLoop(ctx, m.stopCh)
	}

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frames_per_buffer", m.cfg.FramesPerBuffer,
		"frequency", m.frequency,
	)

	return nil
}

// Emit delivers one buffer synchronously, as a device callback would.
// It reports whether the source was running.
func (m *MockSource) Emit(in []float32) bool {
	m.mu.Lock()
	fn := m.callback
	running := m.running
	m.mu.Unlock()

	if !running || fn == nil {
		return false
	}

	m.callbacks.Add(1)
	m.samplesRead.Add(int64(len(in)))
	fn(in)
	return true
}

func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}) {
	interval := m.cfg.BufferDuration()
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]float32, m.cfg.FramesPerBuffer)
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.fill(buf)
			m.Emit(buf)
		}
	}
}

func (m *MockSource) fill(buf []float32) {
	if m.frequency <= 0 {
		clear(buf)
		return
	}
	for i := range buf {
		buf[i] = float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
	}
}

// Stop halts audio delivery.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	m.callback = nil
	close(m.stopCh)

	m.logger.Info("mock audio source stopped")

	return nil
}

// Running reports whether the source is capturing.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Overrun records a buffer lost by the device, as a real backend reports
// when the input queue overflows.
func (m *MockSource) Overrun() {
	m.overruns.Add(1)
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	return SourceStats{
		Callbacks:   m.callbacks.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     m.Running(),
		Backend:     m.Name(),
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)
