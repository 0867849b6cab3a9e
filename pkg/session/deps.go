package session

import (
	"context"

	"github.com/teslashibe/go-talkback/pkg/audioio"
	"github.com/teslashibe/go-talkback/pkg/capture"
	"github.com/teslashibe/go-talkback/pkg/playback"
	"github.com/teslashibe/go-talkback/pkg/transport"
)

// Channel is the per-session connection to the voice service.
type Channel interface {
	capture.FrameSender
	ReadyState() transport.ReadyState
	Close() error
}

// Dialer opens a channel to url. It must return immediately; events are
// delivered to onEvent from another goroutine.
type Dialer func(ctx context.Context, url string, onEvent transport.EventHandler) Channel

// Microphone is the per-session capture pipeline.
type Microphone interface {
	Start(ctx context.Context) error
	Stop() error
	Stats() capture.Stats
}

// MicFactory builds the capture pipeline of a new session.
type MicFactory func(gate capture.Gate, sender capture.FrameSender) Microphone

// Player decodes and renders response audio.
type Player interface {
	// Activate opens the shared output device if needed.
	Activate() error
	Play(job playback.Job)
}

// TransportDialer dials with pkg/transport.
func TransportDialer(opts ...transport.Option) Dialer {
	return func(ctx context.Context, url string, onEvent transport.EventHandler) Channel {
		return transport.Dial(ctx, url, onEvent, opts...)
	}
}

// CaptureFactory captures from src with pkg/capture.
func CaptureFactory(src audioio.Source, opts ...capture.Option) MicFactory {
	return func(gate capture.Gate, sender capture.FrameSender) Microphone {
		return capture.New(src, gate, sender, opts...)
	}
}

// Ensure transport.Channel implements Channel.
var _ Channel = (*transport.Channel)(nil)

// Ensure capture.Capture implements Microphone.
var _ Microphone = (*capture.Capture)(nil)

// Ensure playback.Engine implements Player.
var _ Player = (*playback.Engine)(nil)
