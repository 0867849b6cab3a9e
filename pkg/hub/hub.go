// Package hub fans dashboard notifications out to websocket subscribers.
//
// The hub keeps the most recent message and replays it to every new
// subscriber, so a page that connects mid-turn shows the current state
// straight away.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Message is one pre-encoded JSON text frame.
type Message []byte

// Hub owns the subscriber set. All mutations happen on the Run goroutine.
type Hub struct {
	name   string
	logger *slog.Logger

	publish chan Message
	join    chan *Subscriber
	leave   chan *Subscriber

	// mu lets ClientCount and Last read loop state.
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
	last Message

	running atomic.Bool
	done    chan struct{}
}

// New creates a hub. Messages published before Run are delivered once it
// starts.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:    name,
		logger:  logger.With("hub", name),
		publish: make(chan Message, 256),
		join:    make(chan *Subscriber),
		leave:   make(chan *Subscriber),
		subs:    make(map[*Subscriber]struct{}),
		done:    make(chan struct{}),
	}
}

// Run serves joins, leaves and publications until ctx is cancelled, then
// disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			if h.last != nil {
				s.queue <- h.last
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber joined", "subscribers", n)

		case s := <-h.leave:
			h.mu.Lock()
			h.drop(s)
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber left", "subscribers", n)

		case msg := <-h.publish:
			h.mu.Lock()
			h.last = msg
			for s := range h.subs {
				select {
				case s.queue <- msg:
				default:
					h.drop(s)
					h.logger.Warn("dropped subscriber that fell behind")
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes s and ends its writer. Callers hold mu.
func (h *Hub) drop(s *Subscriber) {
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.queue)
	}
}

func (h *Hub) shutdown() {
	h.running.Store(false)
	h.mu.Lock()
	for s := range h.subs {
		h.drop(s)
	}
	h.mu.Unlock()
	close(h.done)
}

// Publish queues msg for every subscriber. It never blocks; when the queue
// is full the message is discarded.
func (h *Hub) Publish(msg Message) {
	select {
	case h.publish <- msg:
	default:
		h.logger.Warn("publish queue full, dropping message")
	}
}

// PublishJSON encodes v and publishes it.
func (h *Hub) PublishJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(data)
	return nil
}

// Last returns the most recently delivered message, or nil.
func (h *Hub) Last() Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
