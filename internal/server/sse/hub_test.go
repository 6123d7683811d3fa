package sse

import (
	"context"
	"testing"
	"time"
)

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func receive(t *testing.T, c Client) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-c:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil, false
	}
}

func TestHubBroadcast(t *testing.T) {
	h, _ := runHub(t)

	a, b := make(Client, 4), make(Client, 4)
	h.Register(a)
	h.Register(b)

	h.Broadcast([]byte(`{"emotion":"happy"}`))

	for _, c := range []Client{a, b} {
		msg, ok := receive(t, c)
		if !ok || string(msg) != `{"emotion":"happy"}` {
			t.Errorf("received %q, %v", msg, ok)
		}
	}
	if n := h.ClientCount(); n != 2 {
		t.Errorf("ClientCount() = %d, want 2", n)
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	h, _ := runHub(t)

	c := make(Client, 1)
	h.Register(c)
	h.Unregister(c)

	if _, ok := receive(t, c); ok {
		t.Error("client channel must be closed after Unregister")
	}
	// zweites Abmelden ist unkritisch
	h.Unregister(c)
}

func TestHubDropsSlowClient(t *testing.T) {
	h, _ := runHub(t)

	slow := make(Client) // ungepuffert, nimmt nie etwas an
	h.Register(slow)
	h.Broadcast([]byte("x"))

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Error("slow client must be removed")
	}
}

func TestHubStopClosesClients(t *testing.T) {
	h, cancel := runHub(t)

	c := make(Client, 1)
	h.Register(c)
	cancel()

	if _, ok := receive(t, c); ok {
		t.Error("client channel must be closed when the hub stops")
	}
	if h.Register(make(Client, 1)) {
		t.Error("Register on a stopped hub must fail")
	}
}
