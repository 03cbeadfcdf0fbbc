package eventbus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func dialPair(t *testing.T, bus *Bus, room, id string) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		c := NewClient(id, conn)
		bus.Subscribe(room, c)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn, srv
}

func TestSubscribe_SendsConnectedEvent(t *testing.T) {
	bus := New()
	conn, srv := dialPair(t, bus, "dashboard", "c1")
	defer srv.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), "connected") {
		t.Errorf("first message = %q, want a connected event", msg)
	}
}

func TestBroadcast_DeliversToRoomMembers(t *testing.T) {
	bus := New()
	conn, srv := dialPair(t, bus, "dashboard", "c1")
	defer srv.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	conn.ReadMessage() // drain the connected event

	delivered := bus.Broadcast("dashboard", "orders_synced", map[string]int{"count": 3})
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !strings.Contains(string(msg), "orders_synced") {
		t.Errorf("message = %q, want orders_synced event", msg)
	}
}

func TestBroadcast_UnknownRoomReturnsZero(t *testing.T) {
	bus := New()
	if got := bus.Broadcast("nonexistent", "x", nil); got != 0 {
		t.Errorf("Broadcast on unknown room = %d, want 0", got)
	}
}

func TestStats_ReflectsMembership(t *testing.T) {
	bus := New()
	conn, srv := dialPair(t, bus, "dashboard", "c1")
	defer srv.Close()
	defer conn.Close()
	time.Sleep(50 * time.Millisecond) // let the handshake goroutine subscribe

	stats := bus.Stats()
	if stats.RoomCounts["dashboard"] != 1 {
		t.Errorf("RoomCounts[dashboard] = %d, want 1", stats.RoomCounts["dashboard"])
	}
	if stats.TotalEver != 1 {
		t.Errorf("TotalEver = %d, want 1", stats.TotalEver)
	}
}
