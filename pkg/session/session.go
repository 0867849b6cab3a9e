package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Session is one start/stop cycle. It is owned by the controller loop.
type Session struct {
	ID      string
	Epoch   uint64
	URL     string
	Started time.Time

	channel Channel
	mic     Microphone
	micErr  error
	cancel  context.CancelFunc
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionURL appends the session identifier to the endpoint path.
func SessionURL(endpoint, id string) (string, error) {
	u, err := url.JoinPath(endpoint, id)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return u, nil
}
