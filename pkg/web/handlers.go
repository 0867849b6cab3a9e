package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// apiTimeout bounds how long a request waits for the session loop.
const apiTimeout = 5 * time.Second

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.Send(indexHTML)
}

// handleStatus returns the session controller status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.ctrl == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "controller not attached")
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), apiTimeout)
	defer cancel()

	st, err := s.ctrl.Status(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(st)
}

// handleStart begins a session
func (s *Server) handleStart(c *fiber.Ctx) error {
	return s.control(c, func(ctx context.Context) error { return s.ctrl.Start(ctx) })
}

// handleStop ends the session
func (s *Server) handleStop(c *fiber.Ctx) error {
	return s.control(c, func(ctx context.Context) error { return s.ctrl.Stop(ctx) })
}

func (s *Server) control(c *fiber.Ctx, op func(context.Context) error) error {
	if s.ctrl == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "controller not attached")
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), apiTimeout)
	defer cancel()

	if err := op(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return s.handleStatus(c)
}

func (s *Server) handleLastNotification(c *fiber.Ctx) error {
	return c.JSON(s.LastNotification())
}

// handleStatusWS streams notifications to a dashboard client, starting
// with the current one.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.statusHub.Serve(c)
}
