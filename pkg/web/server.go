// Package web provides the talkback dashboard: start/stop controls, live
// conversation status over a websocket, and Prometheus metrics.
package web

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-talkback/pkg/hub"
	"github.com/teslashibe/go-talkback/pkg/metrics"
	"github.com/teslashibe/go-talkback/pkg/session"
)

//go:embed static/index.html
var indexHTML []byte

// Controller is the part of session.Controller the dashboard drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (session.Status, error)
}

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	addr    string
	ctrl    Controller
	metrics *metrics.Metrics
	logger  *slog.Logger

	// Last notification, replayed to new websocket clients
	last   Notification
	lastMu sync.RWMutex

	statusHub *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new web dashboard server listening on addr.
// SetController must be called before the API is used.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		logger: slog.Default(),
		last:   Notification{Type: TypeClear, Time: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statusHub = hub.New("status", s.logger)
	s.statusHub.PublishJSON(s.last)

	app := fiber.New(fiber.Config{
		AppName:               "Talkback Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/notification", s.handleLastNotification)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// SetController attaches the session controller.
func (s *Server) SetController(ctrl Controller) {
	s.ctrl = ctrl
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hub and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go func() {
		<-ctx.Done()
		s.app.ShutdownWithTimeout(5 * time.Second)
	}()

	s.logger.Info("🌐 web dashboard", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}
