// loopback: local voice-service stand-in for exercising talkback end to end.
//
// Every session that connects on /ws/:session gets its own captured audio
// echoed back after each turn, preceded by an "analysing" status.
//
// Usage:
//
//	loopback [-port 8000] [-turn 3s] [-reply-rate 24000] [-debug]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-talkback/internal/log"
	"github.com/teslashibe/go-talkback/pkg/loopback"
)

var (
	version   = "1.0.0"
	port      = flag.Int("port", 8000, "HTTP server port")
	turn      = flag.Duration("turn", loopback.DefaultConfig().TurnLength, "captured audio per echoed turn")
	replyRate = flag.Int("reply-rate", loopback.DefaultConfig().ReplyRate, "sample rate of echoed audio (0 keeps capture rate)")
	debug     = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			*port = p
		}
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)
	defer log.Sync()

	app := fiber.New(fiber.Config{
		AppName:               "talkback-loopback",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
	}))
	if *debug {
		app.Use(logger.New())
	}

	peer := loopback.New(loopback.Config{
		TurnLength: *turn,
		ReplyRate:  *replyRate,
	})
	peer.RegisterRoutes(app)
	peer.RegisterAPIRoutes(app.Group("/api"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"version":  version,
			"sessions": peer.SessionCount(),
		})
	})

	go func() {
		addr := fmt.Sprintf(":%d", *port)
		log.Info("loopback listening",
			"addr", addr,
			"ws", fmt.Sprintf("ws://localhost:%d/ws/<session>", *port),
			"turn", *turn,
			"version", version)

		if err := app.Listen(addr); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
}
