package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-talkback/pkg/audioio"
	"github.com/teslashibe/go-talkback/pkg/metrics"
	"github.com/teslashibe/go-talkback/pkg/protocol"
)

type recordingSender struct {
	frames [][]byte
	err    error
}

func (r *recordingSender) SendFrame(frame audioio.CaptureFrame) error {
	if r.err != nil {
		return r.err
	}
	data, err := protocol.EncodeFrame(frame.SampleRate, frame.Samples)
	if err != nil {
		return err
	}
	r.frames = append(r.frames, data)
	return nil
}

func newTestCapture(t *testing.T, gate Gate, sender FrameSender) (*Capture, *audioio.MockSource) {
	t.Helper()
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	src := audioio.NewMockSource(cfg, nil)
	c := New(src, gate, sender)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { c.Stop() })
	return c, src
}

func TestCapture_SendsOnlyWhenGateOpen(t *testing.T) {
	var open atomic.Bool
	sender := &recordingSender{}
	c, src := newTestCapture(t, open.Load, sender)

	src.Emit([]float32{0.1, 0.2})
	open.Store(true)
	src.Emit([]float32{0.5, -0.5})
	src.Emit([]float32{1, -1})
	open.Store(false)
	src.Emit([]float32{0.3})

	if len(sender.frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(sender.frames))
	}

	frame, err := protocol.DecodeFrame(sender.frames[0])
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if frame.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", frame.SampleRate)
	}
	if len(frame.Samples) != 2 || frame.Samples[0] != 16384 || frame.Samples[1] != -16384 {
		t.Errorf("samples = %v, want [16384 -16384]", frame.Samples)
	}

	frame, _ = protocol.DecodeFrame(sender.frames[1])
	if frame.Samples[0] != 32767 || frame.Samples[1] != -32768 {
		t.Errorf("samples = %v, want [32767 -32768]", frame.Samples)
	}

	stats := c.Stats()
	if stats.Callbacks != 4 || stats.FramesSent != 2 || stats.DroppedGated != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCapture_ChannelDrop(t *testing.T) {
	sender := &recordingSender{err: errors.New("not open")}
	c, src := newTestCapture(t, func() bool { return true }, sender)

	src.Emit([]float32{0.1})
	src.Emit([]float32{0.1})

	stats := c.Stats()
	if stats.DroppedChannel != 2 || stats.FramesSent != 0 {
		t.Errorf("stats = %+v, want 2 channel drops", stats)
	}
}

func TestCapture_Level(t *testing.T) {
	c, src := newTestCapture(t, func() bool { return true }, &recordingSender{})

	src.Emit([]float32{-1, -1, -1, -1})
	if got := c.Stats().Level; got < 0.99 {
		t.Errorf("Level = %v, want ~1", got)
	}
}

func TestCapture_StartFailure(t *testing.T) {
	cfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(cfg, nil, audioio.WithStartError(audioio.ErrDeviceUnavailable))
	c := New(src, func() bool { return true }, &recordingSender{})

	err := c.Start(context.Background())
	if !errors.Is(err, audioio.ErrDeviceUnavailable) {
		t.Fatalf("Start error = %v, want ErrDeviceUnavailable", err)
	}
	if c.Running() {
		t.Error("capture should not be running")
	}
}

func TestCapture_StopReleasesDevice(t *testing.T) {
	sender := &recordingSender{}
	c, src := newTestCapture(t, func() bool { return true }, sender)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if src.Running() {
		t.Error("source still running after Stop")
	}
	if src.Emit([]float32{0.5}) {
		t.Error("stopped source accepted a buffer")
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
	if len(sender.frames) != 0 {
		t.Errorf("sent %d frames after Stop", len(sender.frames))
	}
}

func TestCapture_DeviceStats(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	src.Overrun() // from an earlier session

	m := metrics.New()
	c := New(src, func() bool { return true }, &recordingSender{}, WithMetrics(m))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { c.Stop() })

	src.Overrun()
	src.Overrun()
	src.Emit(make([]float32, 480))

	if got := testutil.ToFloat64(m.Overruns); got != 2 {
		t.Errorf("overrun metric = %v, want 2", got)
	}

	st := c.Stats()
	if st.Source == nil {
		t.Fatal("Stats().Source is nil for a source with counters")
	}
	if st.Source.Overruns != 3 || st.Source.SamplesRead != 480 || st.Source.Backend != "mock" || !st.Source.Running {
		t.Errorf("Source = %+v", *st.Source)
	}
	if st.SentAudio != 10*time.Millisecond {
		t.Errorf("SentAudio = %v, want 10ms", st.SentAudio)
	}

	// No new overruns: the metric must not count the same ones twice.
	src.Emit(make([]float32, 480))
	if got := testutil.ToFloat64(m.Overruns); got != 2 {
		t.Errorf("overrun metric = %v after quiet callback, want 2", got)
	}
}
