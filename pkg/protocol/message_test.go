package protocol

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseInbound(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt ")
	encoded := base64.StdEncoding.EncodeToString(audio)

	tests := []struct {
		name       string
		input      string
		wantKind   EventKind
		wantStatus string
		wantAudio  []byte
		wantErr    error
	}{
		{
			name:       "status analysing",
			input:      `{"type":"status","value":"analysing"}`,
			wantKind:   EventStatus,
			wantStatus: "analysing",
		},
		{
			name:      "audio payload",
			input:     `{"type":"audio","value":"` + encoded + `"}`,
			wantKind:  EventAudio,
			wantAudio: audio,
		},
		{
			name:     "other status value",
			input:    `{"type":"status","value":"done"}`,
			wantKind: EventDiscarded,
			wantErr:  ErrUnsupportedStatus,
		},
		{
			name:     "unknown type",
			input:    `{"type":"transcript","value":"hello"}`,
			wantKind: EventDiscarded,
			wantErr:  ErrUnknownType,
		},
		{
			name:     "missing type",
			input:    `{"value":"analysing"}`,
			wantKind: EventDiscarded,
			wantErr:  ErrUnknownType,
		},
		{
			// Passed through; rejecting it is up to the decoder.
			name:      "empty audio",
			input:     `{"type":"audio","value":""}`,
			wantKind:  EventAudio,
			wantAudio: []byte{},
		},
		{
			name:     "bad base64",
			input:    `{"type":"audio","value":"!!not base64!!"}`,
			wantKind: EventDiscarded,
		},
		{
			name:     "malformed json",
			input:    `{"type":"status",`,
			wantKind: EventDiscarded,
		},
		{
			name:     "non-string value",
			input:    `{"type":"status","value":42}`,
			wantKind: EventDiscarded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ParseInbound([]byte(tt.input))
			if ev.Kind != tt.wantKind {
				t.Fatalf("ParseInbound() kind = %v, want %v (reason: %v)", ev.Kind, tt.wantKind, ev.Reason)
			}
			if ev.Status != tt.wantStatus {
				t.Errorf("ParseInbound() status = %q, want %q", ev.Status, tt.wantStatus)
			}
			if !bytes.Equal(ev.Audio, tt.wantAudio) {
				t.Errorf("ParseInbound() audio = %v, want %v", ev.Audio, tt.wantAudio)
			}
			if tt.wantKind == EventDiscarded && ev.Reason == nil {
				t.Error("ParseInbound() discarded event should carry a reason")
			}
			if tt.wantErr != nil && !errors.Is(ev.Reason, tt.wantErr) {
				t.Errorf("ParseInbound() reason = %v, want %v", ev.Reason, tt.wantErr)
			}
		})
	}
}

func TestParseBinary(t *testing.T) {
	ev := ParseBinary([]byte{1, 2, 3})
	if ev.Kind != EventDiscarded {
		t.Fatalf("ParseBinary() kind = %v, want discarded", ev.Kind)
	}
	if !errors.Is(ev.Reason, ErrBinaryInbound) {
		t.Errorf("ParseBinary() reason = %v, want %v", ev.Reason, ErrBinaryInbound)
	}
}

func TestServerMessagesParse(t *testing.T) {
	data, err := NewStatusMessage(StatusAnalysing).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if string(data) != `{"type":"status","value":"analysing"}` {
		t.Errorf("status message = %s", data)
	}
	if ev := ParseInbound(data); ev.Kind != EventStatus {
		t.Errorf("status message parsed as %v", ev.Kind)
	}

	payload := []byte{0xff, 0xfb, 0x90, 0x00}
	data, err = NewAudioMessage(payload).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	ev := ParseInbound(data)
	if ev.Kind != EventAudio || !bytes.Equal(ev.Audio, payload) {
		t.Errorf("audio message parsed as %v %v", ev.Kind, ev.Audio)
	}
}

func TestEventKindString(t *testing.T) {
	tests := map[EventKind]string{
		EventDiscarded: "discarded",
		EventStatus:    "status",
		EventAudio:     "audio",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
