package audioio

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	defer src.Close()

	ctx := context.Background()
	noop := func([]float32) {}

	// Start should succeed
	if err := src.Start(ctx, noop); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Starting again should be a no-op
	if err := src.Start(ctx, noop); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Stopping again should be a no-op
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestMockSource_Emit(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	defer src.Close()

	var got []float32
	if src.Emit([]float32{0.1}) {
		t.Error("Emit before Start should report false")
	}

	if err := src.Start(context.Background(), func(in []float32) {
		got = append(got, in...)
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !src.Emit([]float32{0.25, -0.25}) {
		t.Fatal("Emit while running should report true")
	}
	if len(got) != 2 || got[0] != 0.25 || got[1] != -0.25 {
		t.Errorf("callback received %v", got)
	}

	src.Stop()
	if src.Emit([]float32{0.5}) {
		t.Error("Emit after Stop should report false")
	}

	stats := src.Stats()
	if stats.Callbacks != 1 {
		t.Errorf("Expected 1 callback, got %d", stats.Callbacks)
	}
	if stats.SamplesRead != 2 {
		t.Errorf("Expected 2 samples, got %d", stats.SamplesRead)
	}
	if stats.Running {
		t.Error("Stats should report stopped source")
	}
}

func TestMockSource_StartError(t *testing.T) {
	denied := errors.New("permission denied")
	src := NewMockSource(DefaultConfig(), nil, WithStartError(denied))

	if err := src.Start(context.Background(), func([]float32) {}); !errors.Is(err, denied) {
		t.Errorf("Start error = %v, want %v", err, denied)
	}
	if src.Running() {
		t.Error("source should not be running after failed Start")
	}
}

func TestMockSource_Closed(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	src.Close()

	if err := src.Start(context.Background(), func([]float32) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want %v", err, ErrClosed)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000
	cfg.FramesPerBuffer = 160 // 10ms

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	var buffers atomic.Int64
	var nonZero atomic.Bool
	err := src.Start(context.Background(), func(in []float32) {
		if len(in) != cfg.FramesPerBuffer {
			t.Errorf("buffer length = %d, want %d", len(in), cfg.FramesPerBuffer)
		}
		for _, s := range in {
			if s > 0.5 || s < -0.5 {
				t.Errorf("sample %v exceeds amplitude", s)
			}
			if s != 0 {
				nonZero.Store(true)
			}
		}
		buffers.Add(1)
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for buffers.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	src.Stop()

	if buffers.Load() < 3 {
		t.Fatalf("Expected at least 3 buffers, got %d", buffers.Load())
	}
	if !nonZero.Load() {
		t.Error("Sine wave should produce non-zero samples")
	}
}

func TestNewSource_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	if src.Name() != "mock" {
		t.Errorf("Name() = %q, want mock", src.Name())
	}
}

func TestNewSource_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 2

	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("NewSource should reject stereo capture")
	}
}

func TestMockSource_Overrun(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	src.Overrun()
	src.Overrun()

	if got := src.Stats().Overruns; got != 2 {
		t.Errorf("Overruns = %d, want 2", got)
	}
}

func TestAvailableBackends(t *testing.T) {
	backends := AvailableBackends()
	if !slices.Contains(backends, BackendMock) {
		t.Errorf("AvailableBackends() = %v, want mock included", backends)
	}
	if got := slices.Contains(backends, BackendPortAudio); got != portAudioAvailable {
		t.Errorf("portaudio listed = %v, built in = %v", got, portAudioAvailable)
	}
}

func TestNewSource_BackendNotBuilt(t *testing.T) {
	if portAudioAvailable {
		t.Skip("portaudio is built in")
	}
	cfg := DefaultConfig()
	cfg.Backend = BackendPortAudio

	_, err := NewSource(cfg, nil)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("NewSource() error = %v, want ErrDeviceUnavailable", err)
	}
}
