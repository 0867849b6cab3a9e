// Package loopback is a local stand-in for the voice service.
//
// It accepts client sessions on /ws/:session, decodes their audio frames
// and, once a turn's worth of audio has arrived, answers with an
// "analysing" status followed by the captured audio as a base64 WAV.
// Nothing is analysed or synthesized.
package loopback

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-talkback/internal/log"
	"github.com/teslashibe/go-talkback/pkg/audioio"
	"github.com/teslashibe/go-talkback/pkg/protocol"
)

// Config controls when and how the peer replies.
type Config struct {
	// TurnLength is the amount of captured audio that completes a turn.
	TurnLength time.Duration `yaml:"turn_length"`

	// ReplyRate resamples the echoed audio. Zero keeps the capture rate.
	ReplyRate int `yaml:"reply_rate"`
}

// DefaultConfig returns a 3 second turn echoed at 24 kHz.
func DefaultConfig() Config {
	return Config{
		TurnLength: 3 * time.Second,
		ReplyRate:  24000,
	}
}

// Session is one connected client.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a JSON message to the client.
func (s *Session) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

// Peer serves loopback sessions.
type Peer struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	framesReceived  atomic.Uint64
	framesRejected  atomic.Uint64
	repliesSent     atomic.Uint64
	samplesReceived atomic.Uint64
}

// Option configures a Peer.
type Option func(*Peer)

// WithLogger sets the peer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Peer) { p.logger = l }
}

// New creates a peer.
func New(cfg Config, opts ...Option) *Peer {
	p := &Peer{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.Or(p.logger).With("component", "loopback")
	return p
}

// RegisterRoutes mounts the WebSocket endpoint on app.
func (p *Peer) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/:session", websocket.New(p.handleSession))
}

func (p *Peer) handleSession(c *websocket.Conn) {
	id := c.Params("session")
	sess := &Session{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	p.mu.Lock()
	if _, dup := p.sessions[id]; dup {
		p.mu.Unlock()
		p.logger.Warn("duplicate session id, closing", "session", id)
		return
	}
	p.sessions[id] = sess
	count := len(p.sessions)
	p.mu.Unlock()

	logger := p.logger.With("session", id)
	logger.Info("session connected", "sessions", count)

	defer func() {
		p.mu.Lock()
		delete(p.sessions, id)
		count := len(p.sessions)
		p.mu.Unlock()
		logger.Info("session disconnected", "sessions", count)
	}()

	t := &turn{length: p.cfg.TurnLength}
	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			logger.Debug("read ended", "error", err)
			return
		}
		sess.touch()

		if mt != websocket.BinaryMessage {
			logger.Debug("ignoring text message", "bytes", len(data))
			continue
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			p.framesRejected.Add(1)
			logger.Warn("bad frame", "error", err)
			continue
		}
		p.framesReceived.Add(1)
		p.samplesReceived.Add(uint64(len(frame.Samples)))

		if !t.add(frame) {
			continue
		}
		samples, rate := t.take()
		if err := p.reply(sess, samples, rate); err != nil {
			logger.Warn("reply failed", "error", err)
			return
		}
	}
}

// reply sends the analysing status and then the echoed audio.
func (p *Peer) reply(sess *Session, samples []int16, rate int) error {
	if err := sess.Send(protocol.NewStatusMessage(protocol.StatusAnalysing)); err != nil {
		return fmt.Errorf("send status: %w", err)
	}

	if p.cfg.ReplyRate > 0 && p.cfg.ReplyRate != rate {
		samples = audioio.Resample(samples, rate, p.cfg.ReplyRate)
		rate = p.cfg.ReplyRate
	}
	wav, err := audioio.EncodeWAV(samples, rate)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	if err := sess.Send(protocol.NewAudioMessage(wav)); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}

	p.repliesSent.Add(1)
	p.logger.Info("turn echoed", "session", sess.ID, "samples", len(samples), "rate", rate)
	return nil
}

// SessionCount returns the number of connected sessions.
func (p *Peer) SessionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Session returns a connected session by id, or nil.
func (p *Peer) Session(id string) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[id]
}

// Stats contains peer counters.
type Stats struct {
	Sessions        int    `json:"sessions"`
	FramesReceived  uint64 `json:"frames_received"`
	FramesRejected  uint64 `json:"frames_rejected"`
	SamplesReceived uint64 `json:"samples_received"`
	RepliesSent     uint64 `json:"replies_sent"`
}

// Stats returns peer counters.
func (p *Peer) Stats() Stats {
	return Stats{
		Sessions:        p.SessionCount(),
		FramesReceived:  p.framesReceived.Load(),
		FramesRejected:  p.framesRejected.Load(),
		SamplesReceived: p.samplesReceived.Load(),
		RepliesSent:     p.repliesSent.Load(),
	}
}

// SessionInfo describes a connected session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionInfos lists connected sessions.
func (p *Peer) SessionInfos() []SessionInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(p.sessions))
	for _, s := range p.sessions {
		s.mu.Lock()
		infos = append(infos, SessionInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.LastSeen,
		})
		s.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes mounts read-only inspection routes on api.
func (p *Peer) RegisterAPIRoutes(api fiber.Router) {
	sessions := api.Group("/sessions")

	sessions.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": p.SessionInfos(),
			"count":    p.SessionCount(),
		})
	})

	sessions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(p.Stats())
	})
}
