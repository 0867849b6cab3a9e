package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeFrame_Layout(t *testing.T) {
	got, err := EncodeFrame(48000, []int16{16384, -16384})
	if err != nil {
		t.Fatalf("EncodeFrame() error: %v", err)
	}

	meta := []byte(`{"sampleRate":48000}`)
	want := []byte{byte(len(meta)), 0, 0, 0}
	want = append(want, meta...)
	want = append(want, 0x00, 0x40, 0x00, 0xC0)

	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFrame() = %v, want %v", got, want)
	}
}

func TestEncodeFrame_Empty(t *testing.T) {
	got, err := EncodeFrame(16000, nil)
	if err != nil {
		t.Fatalf("EncodeFrame() error: %v", err)
	}
	meta := `{"sampleRate":16000}`
	if len(got) != 4+len(meta) {
		t.Errorf("EncodeFrame() length = %d, want %d", len(got), 4+len(meta))
	}
	if string(got[4:]) != meta {
		t.Errorf("EncodeFrame() metadata = %s, want %s", got[4:], meta)
	}
}

func TestDecodeFrame(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	data, err := EncodeFrame(44100, samples)
	if err != nil {
		t.Fatalf("EncodeFrame() error: %v", err)
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error: %v", err)
	}
	if frame.SampleRate != 44100 {
		t.Errorf("DecodeFrame() sample rate = %d, want 44100", frame.SampleRate)
	}
	if len(frame.Samples) != len(samples) {
		t.Fatalf("DecodeFrame() samples = %d, want %d", len(frame.Samples), len(samples))
	}
	for i := range samples {
		if frame.Samples[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, frame.Samples[i], samples[i])
		}
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"too short", []byte{1, 0}, ErrShortFrame},
		{"metadata overrun", []byte{50, 0, 0, 0, '{', '}'}, ErrShortFrame},
		{"odd payload", append([]byte{2, 0, 0, 0, '{', '}'}, 0x01), ErrOddPayload},
		{"bad metadata", []byte{2, 0, 0, 0, 'x', 'y'}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.data)
			if err == nil {
				t.Fatal("DecodeFrame() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
