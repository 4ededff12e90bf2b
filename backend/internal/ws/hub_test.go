package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"copyEditor/backend/internal/events"
)

func newTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", NewManager(hub, nil).WebSocketConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome ServerMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome error: %v", err)
	}
	if welcome.Type != TypeWelcome {
		t.Fatalf("first message type = %q, want %q", welcome.Type, TypeWelcome)
	}
	return conn
}

func TestHub_BroadcastMergedReachesAllSubscribers(t *testing.T) {
	hub, url := newTestServer(t)
	a := dial(t, url)
	b := dial(t, url)

	evt := events.NewBlocksMergedEvent("site", map[string]string{"hero": "x"})
	hub.BroadcastMerged(evt)

	for i, conn := range []*websocket.Conn{a, b} {
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("conn %d read error: %v", i, err)
		}
		if msg.Type != TypeBlocksMerged || msg.EventID != evt.EventID {
			t.Fatalf("conn %d got %+v", i, msg)
		}
		if len(msg.Keys) != 1 || msg.Keys[0] != "hero" {
			t.Fatalf("conn %d keys = %v", i, msg.Keys)
		}
	}
}

func TestHub_LeaveOnDisconnect(t *testing.T) {
	hub, url := newTestServer(t)
	conn := dial(t, url)
	if hub.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", hub.Len())
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection still registered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// 断开后广播不 panic
	hub.BroadcastMerged(events.NewBlocksMergedEvent("site", nil))
}

func TestHub_RelayMergedSkipsOwnEvents(t *testing.T) {
	hub, url := newTestServer(t)
	conn := dial(t, url)
	relay := hub.RelayMerged("instance-a")

	own := events.NewBlocksMergedEvent("site", map[string]string{"hero": "x"})
	own.Origin = "instance-a"
	other := events.NewBlocksMergedEvent("site", map[string]string{"footer": "y"})
	other.Origin = "instance-b"

	for _, evt := range []events.BlocksMergedEvent{own, other} {
		b, err := json.Marshal(evt)
		if err != nil {
			t.Fatal(err)
		}
		relay(b)
	}
	relay([]byte("not json"))

	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if msg.EventID != other.EventID {
		t.Fatalf("first relayed event = %s, want %s (own event must be skipped)", msg.EventID, other.EventID)
	}
	if len(msg.Keys) != 1 || msg.Keys[0] != "footer" {
		t.Fatalf("keys = %v", msg.Keys)
	}
}
