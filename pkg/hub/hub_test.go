package hub

import (
	"context"
	"testing"
	"time"
)

// subscribe joins a connectionless subscriber so tests can read its queue.
func subscribe(t *testing.T, h *Hub, size int) *Subscriber {
	t.Helper()
	s := &Subscriber{hub: h, queue: make(chan Message, size)}
	select {
	case h.join <- s:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept subscriber")
	}
	return s
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func receive(t *testing.T, s *Subscriber) Message {
	t.Helper()
	select {
	case msg, ok := <-s.queue:
		if !ok {
			t.Fatal("subscriber queue closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishJSON(t *testing.T) {
	h := runHub(t)
	a := subscribe(t, h, 4)
	b := subscribe(t, h, 4)

	if err := h.PublishJSON(map[string]string{"type": "thinking"}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	for _, s := range []*Subscriber{a, b} {
		if got := string(receive(t, s)); got != `{"type":"thinking"}` {
			t.Errorf("subscriber got %s", got)
		}
	}
	if h.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", h.ClientCount())
	}
}

func TestHub_ReplaysLastToNewSubscriber(t *testing.T) {
	h := New("test", nil)
	h.Publish(Message(`{"type":"clear"}`)) // before Run

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	waitFor(t, func() bool { return h.Last() != nil })
	h.Publish(Message(`{"type":"recording"}`))
	waitFor(t, func() bool { return string(h.Last()) == `{"type":"recording"}` })

	s := subscribe(t, h, 4)
	if got := string(receive(t, s)); got != `{"type":"recording"}` {
		t.Errorf("replayed %s, want the latest message", got)
	}
}

func TestHub_Leave(t *testing.T) {
	h := runHub(t)
	s := subscribe(t, h, 1)

	h.leave <- s
	if _, ok := <-s.queue; ok {
		t.Error("queue should be closed after leaving")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := runHub(t)
	slow := subscribe(t, h, 1)

	h.Publish(Message(`1`))
	h.Publish(Message(`2`))

	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if got := string(<-slow.queue); got != "1" {
		t.Errorf("first message = %s, want 1", got)
	}
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	s := subscribe(t, h, 1)
	cancel()
	<-h.done

	if _, ok := <-s.queue; ok {
		t.Error("queue should be closed when the hub stops")
	}
	if h.IsRunning() {
		t.Error("hub should report stopped")
	}
}
