// Package protocol defines the wire format spoken between the talkback client
// and its voice service.
//
// Client → service traffic is binary: one frame per capture callback carrying
// sample-rate metadata and PCM16 samples (see EncodeFrame). Service → client
// traffic is JSON text: status updates and base64 audio payloads.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies the type of a service → client message.
type MessageType string

const (
	TypeStatus MessageType = "status" // Turn progress
	TypeAudio  MessageType = "audio"  // Synthesized response audio
)

// StatusAnalysing is the only status value the client acts on.
const StatusAnalysing = "analysing"

var (
	// ErrUnknownType is returned for messages whose type is not status or audio.
	ErrUnknownType = errors.New("protocol: unknown message type")

	// ErrUnsupportedStatus is returned for status messages other than "analysing".
	ErrUnsupportedStatus = errors.New("protocol: unsupported status value")

	// ErrBinaryInbound is returned for binary messages from the service.
	ErrBinaryInbound = errors.New("protocol: binary inbound messages are not supported")
)

// Message is the JSON envelope of every service → client message.
type Message struct {
	Type  MessageType `json:"type"`
	Value string      `json:"value"`
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// EventKind tags an InboundEvent.
type EventKind int

const (
	// EventDiscarded marks a message that was rejected. Reason says why.
	EventDiscarded EventKind = iota
	// EventStatus is a StatusUpdate.
	EventStatus
	// EventAudio is an AudioPayload.
	EventAudio
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventAudio:
		return "audio"
	default:
		return "discarded"
	}
}

// InboundEvent is the typed result of classifying one received message.
// Exactly one of Status or Audio is meaningful, selected by Kind.
type InboundEvent struct {
	Kind   EventKind
	Status string
	Audio  []byte
	Reason error
}

// StatusUpdate builds a status event.
func StatusUpdate(value string) InboundEvent {
	return InboundEvent{Kind: EventStatus, Status: value}
}

// AudioPayload builds an audio event.
func AudioPayload(data []byte) InboundEvent {
	return InboundEvent{Kind: EventAudio, Audio: data}
}

// Discarded builds a rejected event.
func Discarded(reason error) InboundEvent {
	return InboundEvent{Kind: EventDiscarded, Reason: reason}
}

// ParseInbound classifies a text message. It never fails: anything that is
// not a well-formed status or audio message comes back as EventDiscarded.
func ParseInbound(data []byte) InboundEvent {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Discarded(fmt.Errorf("failed to parse message: %w", err))
	}

	switch msg.Type {
	case TypeStatus:
		if msg.Value != StatusAnalysing {
			return Discarded(fmt.Errorf("%w: %q", ErrUnsupportedStatus, msg.Value))
		}
		return StatusUpdate(msg.Value)

	case TypeAudio:
		audio, err := base64.StdEncoding.DecodeString(msg.Value)
		if err != nil {
			return Discarded(fmt.Errorf("failed to decode audio: %w", err))
		}
		return AudioPayload(audio)

	default:
		return Discarded(fmt.Errorf("%w: %q", ErrUnknownType, msg.Type))
	}
}

// ParseBinary classifies a binary message, which this protocol version
// does not define.
func ParseBinary(data []byte) InboundEvent {
	return Discarded(fmt.Errorf("%w (%d bytes)", ErrBinaryInbound, len(data)))
}

// NewStatusMessage creates a status message.
func NewStatusMessage(value string) *Message {
	return &Message{Type: TypeStatus, Value: value}
}

// NewAudioMessage creates an audio message from raw encoded audio.
func NewAudioMessage(audio []byte) *Message {
	return &Message{Type: TypeAudio, Value: base64.StdEncoding.EncodeToString(audio)}
}
