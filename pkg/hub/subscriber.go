package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Dashboard pages only send control frames.
	maxInbound = 4 * 1024

	queueSize = 64
)

// Subscriber is one dashboard websocket.
type Subscriber struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan Message
}

// Serve subscribes conn and blocks until it disconnects or the hub stops.
// The latest message, if any, is sent first.
func (h *Hub) Serve(conn *websocket.Conn) {
	s := &Subscriber{
		hub:   h,
		conn:  conn,
		queue: make(chan Message, queueSize),
	}
	select {
	case h.join <- s:
	case <-h.done:
		return
	}

	go s.writeLoop()
	s.readLoop()
}

// readLoop consumes pongs and notices disconnects.
func (s *Subscriber) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxInbound)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer on conn.
func (s *Subscriber) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
