// Package metrics holds the Prometheus instruments of the talkback client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for captured frames.
const (
	DropGated   = "gated"   // state was not listening
	DropChannel = "channel" // channel not open or write failed
)

// Playback results.
const (
	PlaybackCompleted   = "completed"
	PlaybackDecodeError = "decode_error"
	PlaybackStale       = "stale"
)

// Metrics contains all Prometheus metrics for the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Capture / transport
	FramesSent    prometheus.Counter
	FramesDropped *prometheus.CounterVec
	BytesSent     prometheus.Counter
	Overruns      prometheus.Counter

	// Inbound
	InboundMessages *prometheus.CounterVec

	// Session
	Transitions  *prometheus.CounterVec
	SessionEpoch prometheus.Gauge

	// Playback
	PlaybackResults  *prometheus.CounterVec
	PlaybackDuration prometheus.Histogram
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "talkback_frames_sent_total",
			Help: "Total number of capture frames written to the channel",
		}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkback_frames_dropped_total",
			Help: "Total number of capture frames dropped, by reason",
		}, []string{"reason"}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "talkback_bytes_sent_total",
			Help: "Total number of frame bytes written to the channel",
		}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Name: "talkback_capture_overruns_total",
			Help: "Total number of input buffers the capture device reported lost",
		}),

		InboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkback_inbound_messages_total",
			Help: "Total number of inbound messages, by classification",
		}, []string{"kind"}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkback_state_transitions_total",
			Help: "Total number of conversation state transitions",
		}, []string{"from", "to"}),
		SessionEpoch: f.NewGauge(prometheus.GaugeOpts{
			Name: "talkback_session_epoch",
			Help: "Current session epoch",
		}),

		PlaybackResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkback_playback_results_total",
			Help: "Total number of playback attempts, by result",
		}, []string{"result"}),
		PlaybackDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "talkback_playback_duration_seconds",
			Help:    "Duration of rendered responses",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FrameSent records a frame written to the channel.
func (m *Metrics) FrameSent(bytes int) {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
	m.BytesSent.Add(float64(bytes))
}

// FrameDropped records a dropped frame.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// CaptureOverruns records n device overruns.
func (m *Metrics) CaptureOverruns(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.Overruns.Add(float64(n))
}

// Inbound records a classified inbound message.
func (m *Metrics) Inbound(kind string) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(kind).Inc()
}

// Transition records a state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// Epoch records the current session epoch.
func (m *Metrics) Epoch(epoch uint64) {
	if m == nil {
		return
	}
	m.SessionEpoch.Set(float64(epoch))
}

// Playback records a playback outcome.
func (m *Metrics) Playback(result string) {
	if m == nil {
		return
	}
	m.PlaybackResults.WithLabelValues(result).Inc()
}

// PlaybackLength records how long a rendered response lasted, in seconds.
func (m *Metrics) PlaybackLength(seconds float64) {
	if m == nil {
		return
	}
	m.PlaybackDuration.Observe(seconds)
}
