package web

import (
	"time"

	"github.com/teslashibe/go-talkback/pkg/session"
)

// Notification types pushed on /ws/status.
const (
	TypeRecording      = "recording"
	TypeThinking       = "thinking"
	TypeClear          = "clear"
	TypeMicUnavailable = "mic_unavailable"
)

// Notification is one UI update.
type Notification struct {
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

func (s *Server) notify(n Notification) {
	n.Time = time.Now()

	s.lastMu.Lock()
	s.last = n
	s.lastMu.Unlock()

	if err := s.statusHub.PublishJSON(n); err != nil {
		s.logger.Warn("failed to broadcast notification", "error", err)
	}
}

// LastNotification returns the most recent notification.
func (s *Server) LastNotification() Notification {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

func (s *Server) NotifyRecording() { s.notify(Notification{Type: TypeRecording}) }
func (s *Server) NotifyThinking()  { s.notify(Notification{Type: TypeThinking}) }
func (s *Server) NotifyClear()     { s.notify(Notification{Type: TypeClear}) }

func (s *Server) NotifyMicUnavailable(message string) {
	s.notify(Notification{Type: TypeMicUnavailable, Message: message})
}

var _ session.Notifier = (*Server)(nil)
