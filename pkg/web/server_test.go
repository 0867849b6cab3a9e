package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-talkback/pkg/metrics"
	"github.com/teslashibe/go-talkback/pkg/session"
)

type fakeController struct {
	starts, stops int
	state         string
	err           error
}

func (f *fakeController) Start(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.starts++
	f.state = "listening"
	return nil
}

func (f *fakeController) Stop(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.stops++
	f.state = "idle"
	return nil
}

func (f *fakeController) Status(context.Context) (session.Status, error) {
	if f.err != nil {
		return session.Status{}, f.err
	}
	return session.Status{State: f.state, Epoch: uint64(f.starts + f.stops)}, nil
}

func newTestServer(ctrl Controller) *Server {
	s := NewServer(":0", WithMetrics(metrics.New()))
	if ctrl != nil {
		s.SetController(ctrl)
	}
	return s
}

func decodeStatus(t *testing.T, body io.Reader) session.Status {
	t.Helper()
	var st session.Status
	if err := json.NewDecoder(body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func TestStartStop(t *testing.T) {
	ctrl := &fakeController{state: "idle"}
	s := newTestServer(ctrl)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/start", nil))
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	if st := decodeStatus(t, resp.Body); st.State != "listening" || st.Epoch != 1 {
		t.Errorf("status after start = %+v", st)
	}

	resp, err = s.App().Test(httptest.NewRequest("POST", "/api/stop", nil))
	if err != nil {
		t.Fatalf("stop request failed: %v", err)
	}
	if st := decodeStatus(t, resp.Body); st.State != "idle" || st.Epoch != 2 {
		t.Errorf("status after stop = %+v", st)
	}
	if ctrl.starts != 1 || ctrl.stops != 1 {
		t.Errorf("starts=%d stops=%d, want 1/1", ctrl.starts, ctrl.stops)
	}
}

func TestStatus_ControllerError(t *testing.T) {
	s := newTestServer(&fakeController{err: errors.New("loop gone")})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 503 {
		t.Errorf("status code = %d, want 503", resp.StatusCode)
	}
}

func TestStart_NoController(t *testing.T) {
	s := newTestServer(nil)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/start", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 503 {
		t.Errorf("status code = %d, want 503", resp.StatusCode)
	}
}

func TestNotifications(t *testing.T) {
	s := newTestServer(&fakeController{})

	if got := s.LastNotification().Type; got != TypeClear {
		t.Errorf("initial notification = %q, want clear", got)
	}

	s.NotifyRecording()
	s.NotifyThinking()
	s.NotifyMicUnavailable("no device")

	last := s.LastNotification()
	if last.Type != TypeMicUnavailable || last.Message != "no device" {
		t.Errorf("last notification = %+v", last)
	}

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/notification", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var n Notification
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Type != TypeMicUnavailable {
		t.Errorf("GET /api/notification type = %q", n.Type)
	}
}

func TestIndexAndMetrics(t *testing.T) {
	s := newTestServer(&fakeController{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("index request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/ws/status") {
		t.Error("index page should connect to /ws/status")
	}

	resp, err = s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "talkback_frames_sent_total") {
		t.Error("metrics output missing talkback counters")
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(&fakeController{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("status code = %d, want 426", resp.StatusCode)
	}
}
