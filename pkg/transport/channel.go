// Package transport owns the duplex WebSocket channel to the voice service.
//
// Outbound, it encodes capture frames into binary wire frames and writes them
// only while the channel is open; anything sent in another state is dropped.
// Inbound, it classifies every received message into a protocol.InboundEvent
// and hands it to the event handler. There is no reconnection: once closed,
// a Channel stays closed.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-talkback/pkg/audioio"
	"github.com/teslashibe/go-talkback/pkg/metrics"
	"github.com/teslashibe/go-talkback/pkg/protocol"
)

const (
	// writeWait bounds a single frame write. Writes happen on the capture
	// thread, so this is kept short.
	writeWait = 2 * time.Second

	// pongWait is how long to wait for any traffic from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound messages; audio responses are base64 MP3/WAV.
	maxMessageSize = 16 * 1024 * 1024
)

// ErrNotOpen is returned by Send when the channel is not open.
var ErrNotOpen = errors.New("transport: channel not open")

// ReadyState mirrors the lifecycle of the underlying connection.
type ReadyState int32

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "closed"
	}
}

// EventHandler receives every classified inbound message, in order, from the
// channel's read goroutine.
type EventHandler func(ev protocol.InboundEvent)

// Channel is one client connection to the voice service.
type Channel struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	logger  *slog.Logger
	metrics *metrics.Metrics
	onEvent EventHandler
	onClose func(err error)

	state  atomic.Int32
	cancel context.CancelFunc

	// wsMu serializes writes and guards conn.
	wsMu sync.Mutex
	conn *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithDialer replaces the default dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithHeader adds handshake headers.
func WithHeader(h http.Header) Option {
	return func(c *Channel) { c.header = h }
}

// WithOnClose registers a callback invoked once when the connection ends,
// whether by Close, peer close, or dial failure. err is nil after Close.
func WithOnClose(fn func(err error)) Option {
	return func(c *Channel) { c.onClose = fn }
}

// Dial starts connecting to url and returns immediately in the Connecting
// state. Frames sent before the connection opens are dropped. Cancelling ctx
// closes the channel.
func Dial(ctx context.Context, url string, onEvent EventHandler, opts ...Option) *Channel {
	c := &Channel{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:  slog.Default(),
		onEvent: onEvent,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(int32(Connecting))

	cctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(cctx)
	go func() {
		<-cctx.Done()
		c.Close()
	}()

	return c
}

// ReadyState returns the current connection state.
func (c *Channel) ReadyState() ReadyState {
	return ReadyState(c.state.Load())
}

// Done is closed once the connection has fully ended.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// URL returns the endpoint this channel connects to.
func (c *Channel) URL() string {
	return c.url
}

func (c *Channel) run(ctx context.Context) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if !c.state.CompareAndSwap(int32(Connecting), int32(Closed)) || ctx.Err() != nil {
			c.finish(nil)
			return
		}
		c.logger.Warn("channel connect failed", "url", c.url, "error", err)
		c.finish(fmt.Errorf("failed to connect to %s: %w", c.url, err))
		return
	}

	c.wsMu.Lock()
	if !c.state.CompareAndSwap(int32(Connecting), int32(Open)) {
		// Closed while the handshake was in flight.
		c.wsMu.Unlock()
		conn.Close()
		c.finish(nil)
		return
	}
	c.conn = conn
	c.wsMu.Unlock()

	c.logger.Info("channel open", "url", c.url)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.keepAlive(conn)
	c.readLoop(conn)
}

// readLoop delivers inbound messages until the connection ends.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if c.state.CompareAndSwap(int32(Open), int32(Closed)) {
				c.logger.Info("channel closed by peer", "error", err)
				conn.Close()
				c.finish(err)
				return
			}
			c.finish(nil)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var ev protocol.InboundEvent
		switch mt {
		case websocket.TextMessage:
			ev = protocol.ParseInbound(data)
		default:
			ev = protocol.ParseBinary(data)
		}
		c.metrics.Inbound(ev.Kind.String())

		if ev.Kind == protocol.EventDiscarded {
			c.logger.Warn("inbound message discarded", "reason", ev.Reason)
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// keepAlive sends periodic pings while the connection is open.
func (c *Channel) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.ReadyState() != Open {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("keepalive ping failed", "error", err)
				return
			}
		}
	}
}

// SendFrame encodes and transmits one capture frame.
func (c *Channel) SendFrame(frame audioio.CaptureFrame) error {
	if c.ReadyState() != Open {
		return ErrNotOpen
	}
	data, err := protocol.EncodeFrame(frame.SampleRate, frame.Samples)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Send writes one binary message. It fails with ErrNotOpen unless the
// channel is open at the moment of the call.
func (c *Channel) Send(data []byte) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ReadyState() != Open || c.conn == nil {
		return ErrNotOpen
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	c.metrics.FrameSent(len(data))
	return nil
}

// Close closes the connection, or abandons the dial if still connecting.
// It does not wait for the read goroutine. Safe to call multiple times.
func (c *Channel) Close() error {
	c.wsMu.Lock()
	state := c.ReadyState()
	if state == Closing || state == Closed {
		c.wsMu.Unlock()
		return nil
	}
	c.state.Store(int32(Closing))

	var err error
	if conn := c.conn; conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = conn.Close()
	}
	c.state.Store(int32(Closed))
	c.wsMu.Unlock()

	c.cancel()
	if state == Open {
		c.logger.Info("channel closed", "url", c.url)
	}
	return err
}

func (c *Channel) finish(err error) {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		if c.onClose != nil {
			c.onClose(err)
		}
	})
}
