// Package capture turns device callbacks into transmitted audio frames.
//
// Each callback is handled synchronously: the gate is consulted, the buffer
// is quantized to PCM16 and handed to the frame sender before the callback
// returns. Nothing is queued across callbacks; a buffer that arrives while
// the gate is closed is dropped.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-talkback/pkg/audioio"
	"github.com/teslashibe/go-talkback/pkg/metrics"
)

// Gate reports whether captured audio may be transmitted right now.
type Gate func() bool

// FrameSender transmits a frame. It must not retain frame.Samples after
// returning.
type FrameSender interface {
	SendFrame(frame audioio.CaptureFrame) error
}

// Stats contains capture counters.
type Stats struct {
	Callbacks      int64   `json:"callbacks"`
	FramesSent     int64   `json:"frames_sent"`
	DroppedGated   int64   `json:"dropped_gated"`
	DroppedChannel int64   `json:"dropped_channel"`
	Level          float64 `json:"level"`
	Running        bool    `json:"running"`

	// SentAudio is the total duration of audio handed to the sender.
	SentAudio time.Duration `json:"sent_audio"`

	// Source holds device counters when the source reports them.
	Source *audioio.SourceStats `json:"source,omitempty"`
}

// Capture connects an audio source to a frame sender.
type Capture struct {
	src     audioio.Source
	devices audioio.SourceWithStats // nil when src keeps no counters
	gate    Gate
	sender  FrameSender
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	buf     []int16

	callbacks      atomic.Int64
	framesSent     atomic.Int64
	droppedGated   atomic.Int64
	droppedChannel atomic.Int64
	level          atomic.Uint64 // float64 bits
	sentAudio      atomic.Int64  // nanoseconds
	overruns       atomic.Int64  // last device overrun count seen
}

// Option configures a Capture.
type Option func(*Capture)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Capture) { c.metrics = m }
}

// New creates a capture that reads from src and writes to sender whenever
// gate reports true.
func New(src audioio.Source, gate Gate, sender FrameSender, opts ...Option) *Capture {
	c := &Capture{
		src:    src,
		gate:   gate,
		sender: sender,
		logger: slog.Default(),
		buf:    make([]int16, src.Config().FramesPerBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if s, ok := src.(audioio.SourceWithStats); ok {
		c.devices = s
		c.overruns.Store(s.Stats().Overruns)
	}
	return c
}

// Start acquires the device. The returned error wraps
// audioio.ErrDeviceUnavailable when the device could not be acquired.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if err := c.src.Start(ctx, c.process); err != nil {
		return fmt.Errorf("start %s capture: %w", c.src.Name(), err)
	}
	c.running = true
	return nil
}

// Stop releases the device. It is safe to call Stop multiple times.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	if err := c.src.Stop(); err != nil {
		return fmt.Errorf("stop %s capture: %w", c.src.Name(), err)
	}
	return nil
}

// Running reports whether the device is held.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// process runs on the device thread, once per buffer.
func (c *Capture) process(in []float32) {
	c.callbacks.Add(1)
	c.recordOverruns()

	if !c.gate() {
		c.droppedGated.Add(1)
		c.metrics.FrameDropped(metrics.DropGated)
		return
	}

	c.buf = audioio.Quantize(c.buf, in)
	c.level.Store(math.Float64bits(audioio.Level(c.buf)))

	frame := audioio.CaptureFrame{
		Samples:    c.buf,
		SampleRate: c.src.Config().SampleRate,
	}
	if err := c.sender.SendFrame(frame); err != nil {
		c.droppedChannel.Add(1)
		c.metrics.FrameDropped(metrics.DropChannel)
		c.logger.Debug("frame dropped", "error", err)
		return
	}
	c.framesSent.Add(1)
	c.sentAudio.Add(int64(frame.Duration()))
}

// recordOverruns exports overruns reported by the device since the last
// callback. The source counter spans sessions; only the delta is counted.
func (c *Capture) recordOverruns() {
	if c.devices == nil {
		return
	}
	n := c.devices.Stats().Overruns
	if prev := c.overruns.Swap(n); n > prev {
		c.metrics.CaptureOverruns(n - prev)
	}
}

// Stats returns capture counters.
func (c *Capture) Stats() Stats {
	st := Stats{
		Callbacks:      c.callbacks.Load(),
		FramesSent:     c.framesSent.Load(),
		DroppedGated:   c.droppedGated.Load(),
		DroppedChannel: c.droppedChannel.Load(),
		Level:          math.Float64frombits(c.level.Load()),
		Running:        c.Running(),
		SentAudio:      time.Duration(c.sentAudio.Load()),
	}
	if c.devices != nil {
		src := c.devices.Stats()
		st.Source = &src
	}
	return st
}
