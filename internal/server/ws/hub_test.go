package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", h.Handler())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.ClientCount(); got != n {
		t.Fatalf("ClientCount() = %d, want %d", got, n)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	waitClients(t, h, 1)

	h.Broadcast([]byte(`{"emotion":"sad"}`))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != `{"emotion":"sad"}` {
		t.Errorf("message = %s", msg)
	}
}

func TestHubClientDisconnect(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	waitClients(t, h, 1)

	conn.Close()
	waitClients(t, h, 0)
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	waitClients(t, h, 1)

	h.Close()
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() after Close = %d", h.ClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection must be closed by the hub")
	}
}
