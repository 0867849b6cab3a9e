package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// Format identifies a container by its leading bytes.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatWAV     Format = "wav"
	FormatOpus    Format = "ogg/opus"
	FormatMP3     Format = "mp3"
)

var (
	// ErrEmptyPayload is returned for zero-length audio.
	ErrEmptyPayload = errors.New("playback: empty payload")

	// ErrUnsupportedFormat is returned when the payload is not WAV, Ogg/Opus or MP3.
	ErrUnsupportedFormat = errors.New("playback: unsupported audio format")
)

// Sniff inspects the first bytes of payload.
func Sniff(payload []byte) Format {
	switch {
	case len(payload) >= 12 && bytes.Equal(payload[:4], []byte("RIFF")) && bytes.Equal(payload[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(payload, oggMagic):
		return FormatOpus
	case bytes.HasPrefix(payload, []byte("ID3")):
		return FormatMP3
	case len(payload) >= 2 && payload[0] == 0xFF && payload[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode turns an encoded payload into a seekable streamer.
func Decode(payload []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(payload) == 0 {
		return nil, beep.Format{}, ErrEmptyPayload
	}

	switch f := Sniff(payload); f {
	case FormatWAV:
		s, format, err := wav.Decode(bytes.NewReader(payload))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode %s: %w", f, err)
		}
		return s, format, nil

	case FormatOpus:
		s, format, err := decodeOggOpus(payload)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode %s: %w", f, err)
		}
		return s, format, nil

	case FormatMP3:
		s, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(payload)))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode %s: %w", f, err)
		}
		return s, format, nil

	default:
		head := payload
		if len(head) > 8 {
			head = head[:8]
		}
		return nil, beep.Format{}, fmt.Errorf("%w (leading bytes %x)", ErrUnsupportedFormat, head)
	}
}
