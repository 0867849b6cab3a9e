// Package playback decodes response audio and renders it on the output
// device.
//
// Every job carries the session epoch it was issued under. The epoch is
// returned unchanged in the job's Completion so the caller can discard
// results that belong to a session which has since ended.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faiface/beep"

	"github.com/teslashibe/go-talkback/pkg/metrics"
)

// resampleQuality is passed to beep.Resample.
const resampleQuality = 4

var (
	// ErrOutputUnavailable is returned when the output device cannot be opened.
	ErrOutputUnavailable = errors.New("playback: output device unavailable")

	// ErrDecode wraps every decoding failure.
	ErrDecode = errors.New("playback: decode failed")

	// ErrStale is reported for jobs whose epoch ended before rendering began.
	ErrStale = errors.New("playback: stale epoch")
)

// Completion is delivered once per job.
type Completion struct {
	Epoch uint64

	// Err is nil when the audio played to the end.
	Err error

	// Duration is the length of the rendered audio.
	Duration time.Duration
}

// Job is one payload to decode and play.
type Job struct {
	Epoch   uint64
	Payload []byte

	// Live reports whether Epoch is still current. It is checked after
	// decoding; a job that is no longer live is not rendered.
	Live func(epoch uint64) bool

	// Done receives the outcome. It is never called on the device thread.
	Done func(Completion)
}

// Engine decodes and plays jobs on a shared Output.
type Engine struct {
	out     *Output
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine rendering to out.
func NewEngine(out *Output, opts ...Option) *Engine {
	e := &Engine{
		out:    out,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activate opens the output device if it is not open yet.
func (e *Engine) Activate() error {
	return e.out.Resume()
}

// Play decodes and renders job asynchronously.
func (e *Engine) Play(job Job) {
	go e.run(job)
}

func (e *Engine) run(job Job) {
	if err := e.out.Resume(); err != nil {
		e.finish(job, Completion{Epoch: job.Epoch, Err: err})
		return
	}

	stream, format, err := Decode(job.Payload)
	if err != nil {
		e.metrics.Playback(metrics.PlaybackDecodeError)
		e.finish(job, Completion{Epoch: job.Epoch, Err: fmt.Errorf("%w: %w", ErrDecode, err)})
		return
	}

	if job.Live != nil && !job.Live(job.Epoch) {
		stream.Close()
		e.metrics.Playback(metrics.PlaybackStale)
		e.finish(job, Completion{Epoch: job.Epoch, Err: ErrStale})
		return
	}

	length := format.SampleRate.D(stream.Len())
	e.logger.Debug("playing response",
		"epoch", job.Epoch,
		"format", Sniff(job.Payload),
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"duration", length,
	)

	var s beep.Streamer = stream
	if format.SampleRate != e.out.Rate() {
		s = beep.Resample(resampleQuality, format.SampleRate, e.out.Rate(), stream)
	}

	e.out.Play(beep.Seq(s, beep.Callback(func() {
		// Runs under the device lock; hand off before calling out.
		go func() {
			stream.Close()
			e.metrics.Playback(metrics.PlaybackCompleted)
			e.metrics.PlaybackLength(length.Seconds())
			e.finish(job, Completion{Epoch: job.Epoch, Duration: length})
		}()
	})))
}

func (e *Engine) finish(job Job, c Completion) {
	if job.Done != nil {
		job.Done(c)
	}
}
