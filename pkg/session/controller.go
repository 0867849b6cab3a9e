// Package session implements the conversational state machine of the
// talkback client.
//
// All state lives in a Controller and is mutated only on its loop goroutine.
// Start and Stop are executed on the loop; channel events and playback
// completions are posted to it. Every start and stop advances the session
// epoch, and anything asynchronous carries the epoch it was issued under so
// results from a finished session are dropped on arrival.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-talkback/pkg/capture"
	"github.com/teslashibe/go-talkback/pkg/metrics"
	"github.com/teslashibe/go-talkback/pkg/playback"
	"github.com/teslashibe/go-talkback/pkg/protocol"
)

// ErrNotRunning is returned when the controller loop is not running.
var ErrNotRunning = errors.New("session: controller not running")

// Deps are the collaborators of a Controller.
type Deps struct {
	Dial     Dialer
	Mic      MicFactory
	Player   Player
	Notifier Notifier
}

// Status is a point-in-time view of the controller.
type Status struct {
	State     string         `json:"state"`
	Epoch     uint64         `json:"epoch"`
	SessionID string         `json:"session_id,omitempty"`
	URL       string         `json:"url,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Since     time.Time      `json:"since,omitempty"`
	MicError  string         `json:"mic_error,omitempty"`
	Capture   *capture.Stats `json:"capture,omitempty"`
	Playbacks int64          `json:"playbacks"`
	Discarded int64          `json:"discarded"`
}

// Controller owns the conversation state and the active session.
type Controller struct {
	endpoint string
	deps     Deps
	logger   *slog.Logger
	metrics  *metrics.Metrics

	state atomic.Int32
	epoch atomic.Uint64

	tasks   chan func()
	running atomic.Bool
	done    chan struct{}

	// Loop-owned.
	runCtx    context.Context
	session   *Session
	playbacks int64
	discarded int64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller that opens sessions under endpoint.
// Start, Stop and Status block until Run is called.
func NewController(endpoint string, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		endpoint: endpoint,
		deps:     deps,
		logger:   slog.Default(),
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.deps.Notifier == nil {
		c.deps.Notifier = LogNotifier{Logger: c.logger}
	}
	return c
}

// State returns the current conversation state. Safe from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Epoch returns the current session epoch. Safe from any goroutine.
func (c *Controller) Epoch() uint64 {
	return c.epoch.Load()
}

// Run processes tasks until ctx is cancelled. An active session is torn
// down on exit.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("session: controller already running")
	}
	c.runCtx = ctx
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.stop()
			return ctx.Err()
		case task := <-c.tasks:
			task()
		}
	}
}

// Start begins a session. It is a no-op unless the state is Idle.
func (c *Controller) Start(ctx context.Context) error {
	return c.call(ctx, c.start)
}

// Stop ends the active session. It is a no-op when Idle.
func (c *Controller) Stop(ctx context.Context) error {
	return c.call(ctx, c.stop)
}

// Status returns a snapshot taken on the loop.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.call(ctx, func() {
		st = Status{
			State:     c.State().String(),
			Epoch:     c.Epoch(),
			Playbacks: c.playbacks,
			Discarded: c.discarded,
		}
		if s := c.session; s != nil {
			st.SessionID = s.ID
			st.URL = s.URL
			st.Since = s.Started
			st.Channel = s.channel.ReadyState().String()
			if s.micErr != nil {
				st.MicError = s.micErr.Error()
			}
			if s.mic != nil {
				stats := s.mic.Stats()
				st.Capture = &stats
			}
		}
	})
	return st, err
}

// Sync waits until every task posted before the call has run.
func (c *Controller) Sync(ctx context.Context) error {
	return c.call(ctx, func() {})
}

// call runs fn on the loop and waits for it.
func (c *Controller) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.tasks <- task:
	case <-c.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the loop without waiting. It is dropped if the loop
// has exited.
func (c *Controller) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

func (c *Controller) setState(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.metrics.Transition(from.String(), to.String())
	c.logger.Debug("state transition", "from", from, "to", to, "epoch", c.Epoch())
}

func (c *Controller) advanceEpoch() uint64 {
	e := c.epoch.Add(1)
	c.metrics.Epoch(e)
	return e
}

func (c *Controller) isCurrent(epoch uint64) bool {
	return c.epoch.Load() == epoch
}

func (c *Controller) gate() bool {
	return c.State() == Listening
}

func (c *Controller) start() {
	if c.State() != Idle {
		c.logger.Debug("start ignored", "state", c.State())
		return
	}

	epoch := c.advanceEpoch()
	id := NewSessionID()
	url, err := SessionURL(c.endpoint, id)
	if err != nil {
		// Endpoint is validated at startup; treat as an unusable channel.
		c.logger.Error("cannot build session url", "error", err)
		url = c.endpoint
	}

	if err := c.deps.Player.Activate(); err != nil {
		c.logger.Warn("output device unavailable", "error", err)
	}

	ctx, cancel := context.WithCancel(c.runCtx)
	s := &Session{
		ID:      id,
		Epoch:   epoch,
		URL:     url,
		Started: time.Now(),
		cancel:  cancel,
	}
	s.channel = c.deps.Dial(ctx, url, func(ev protocol.InboundEvent) {
		c.post(func() { c.onInbound(epoch, ev) })
	})
	c.session = s
	c.setState(Listening)

	mic := c.deps.Mic(c.gate, s.channel)
	if err := mic.Start(ctx); err != nil {
		s.micErr = err
		c.logger.Warn("capture disabled for session", "session", id, "error", err)
	} else {
		s.mic = mic
	}

	c.logger.Info("session started", "session", id, "epoch", epoch, "url", url)

	c.deps.Notifier.NotifyRecording()
	if s.micErr != nil {
		c.deps.Notifier.NotifyMicUnavailable(micMessage(s.micErr))
	}
}

func (c *Controller) stop() {
	if c.State() == Idle {
		return
	}

	epoch := c.advanceEpoch()
	c.setState(Idle)

	s := c.session
	c.session = nil
	if s != nil {
		if s.mic != nil {
			if err := s.mic.Stop(); err != nil {
				c.logger.Warn("capture stop failed", "session", s.ID, "error", err)
			}
		}
		if err := s.channel.Close(); err != nil {
			c.logger.Debug("channel close", "session", s.ID, "error", err)
		}
		s.cancel()
		c.logger.Info("session stopped", "session", s.ID, "epoch", epoch, "duration", time.Since(s.Started).Round(time.Millisecond))
	}

	c.deps.Notifier.NotifyClear()
}

func (c *Controller) onInbound(epoch uint64, ev protocol.InboundEvent) {
	if !c.isCurrent(epoch) {
		c.logger.Debug("event from ended session dropped", "kind", ev.Kind, "epoch", epoch)
		return
	}

	state := c.State()
	switch ev.Kind {
	case protocol.EventStatus:
		if state != Listening {
			c.logger.Debug("status ignored", "status", ev.Status, "state", state)
			return
		}
		c.setState(Analysing)
		c.deps.Notifier.NotifyThinking()

	case protocol.EventAudio:
		if state != Listening && state != Analysing {
			c.logger.Warn("audio payload ignored", "state", state, "bytes", len(ev.Audio))
			return
		}
		c.setState(Playing)
		c.deps.Notifier.NotifyClear()
		c.playbacks++
		c.deps.Player.Play(playback.Job{
			Epoch:   epoch,
			Payload: ev.Audio,
			Live:    c.isCurrent,
			Done: func(comp playback.Completion) {
				c.post(func() { c.onPlayback(comp) })
			},
		})

	default:
		c.discarded++
	}
}

func (c *Controller) onPlayback(comp playback.Completion) {
	if !c.isCurrent(comp.Epoch) {
		c.logger.Debug("stale playback completion dropped", "epoch", comp.Epoch, "current", c.Epoch())
		return
	}
	if comp.Err != nil {
		// No recovery: the session stays in Playing until stopped.
		c.logger.Warn("playback failed", "epoch", comp.Epoch, "error", comp.Err)
		return
	}
	if c.State() != Playing {
		return
	}

	c.setState(Listening)
	c.deps.Notifier.NotifyRecording()
}

func micMessage(err error) string {
	return fmt.Sprintf("Microphone unavailable: %v", err)
}
