// Package eventbus is the in-process publish/subscribe hub and WebSocket
// room fan-out, grounded on the teacher's mutex-guarded cache/connection
// bookkeeping in internal/api/server.go, generalized from EVE-specific
// caches into a named-room client registry.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"salesanalytics/internal/config"
	"salesanalytics/internal/logger"
)

// Client is a single WebSocket connection attached to one or more rooms.
type Client struct {
	ID           string
	conn         *websocket.Conn
	writeMu      sync.Mutex
	lastActivity time.Time
	mu           sync.Mutex
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActivity)
}

// send writes one JSON event frame to the client, bounded by
// config.WSWriteDeadline. A single mutex per client serializes concurrent
// broadcasts that happen to target the same client from different rooms.
func (c *Client) send(event string, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
	payload := map[string]interface{}{"event": event, "data": data, "ts": time.Now().UTC()}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{ID: id, conn: conn, lastActivity: time.Now()}
}

type room struct {
	members map[string]*Client
}

// Bus is the process-wide event hub: a named-room client registry plus
// lifetime counters. A single mutex guards the room map for structural
// changes only — sends are always issued outside the lock, against a
// snapshot of the member list, per spec §4.5.
type Bus struct {
	mu            sync.Mutex
	rooms         map[string]*room
	totalEver     int64
	totalMessages int64
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{rooms: make(map[string]*room)}
}

// Subscribe attaches a client to a named room and sends it a connected
// acknowledgement.
func (b *Bus) Subscribe(roomName string, c *Client) {
	b.mu.Lock()
	r, ok := b.rooms[roomName]
	if !ok {
		r = &room{members: make(map[string]*Client)}
		b.rooms[roomName] = r
	}
	r.members[c.ID] = c
	b.totalEver++
	b.mu.Unlock()

	c.send("connected", map[string]interface{}{"room": roomName, "ts": time.Now().UTC()})
}

// Unsubscribe detaches a client from a room.
func (b *Bus) Unsubscribe(roomName string, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rooms[roomName]; ok {
		delete(r.members, clientID)
	}
}

// Broadcast sends event/data to every member of roomName concurrently,
// snapshotting the member list before releasing the lock so network I/O
// never happens while holding it. A client whose send fails is removed.
// Returns the count of clients that received the message.
func (b *Bus) Broadcast(roomName string, event string, data interface{}) int {
	b.mu.Lock()
	r, ok := b.rooms[roomName]
	if !ok {
		b.mu.Unlock()
		return 0
	}
	snapshot := make([]*Client, 0, len(r.members))
	for _, c := range r.members {
		snapshot = append(snapshot, c)
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := 0
	failed := make([]string, 0)

	for _, c := range snapshot {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if err := c.send(event, data); err != nil {
				mu.Lock()
				failed = append(failed, c.ID)
				mu.Unlock()
				logger.Warn("EVENTBUS", "client "+c.ID+" send failed: "+err.Error())
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	if len(failed) > 0 {
		b.mu.Lock()
		if r, ok := b.rooms[roomName]; ok {
			for _, id := range failed {
				delete(r.members, id)
			}
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.totalMessages += int64(delivered)
	b.mu.Unlock()

	return delivered
}

// BroadcastAll sends event/data to every room.
func (b *Bus) BroadcastAll(event string, data interface{}) int {
	b.mu.Lock()
	names := make([]string, 0, len(b.rooms))
	for name := range b.rooms {
		names = append(names, name)
	}
	b.mu.Unlock()

	total := 0
	for _, name := range names {
		total += b.Broadcast(name, event, data)
	}
	return total
}

// HandleMessage implements the ping/pong keepalive protocol and otherwise
// just records activity.
func (b *Bus) HandleMessage(c *Client, raw []byte) {
	c.touch()
	trimmed := string(raw)
	if trimmed == "ping" {
		c.send("pong", nil)
		return
	}
	var envelope struct {
		Action string `json:"action"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Action == "ping" {
		c.send("pong", nil)
	}
}

// CleanupStale disconnects clients idle longer than maxIdle and returns the
// removed count.
func (b *Bus) CleanupStale(maxIdle time.Duration) int {
	b.mu.Lock()
	type victim struct {
		room   string
		client *Client
	}
	var victims []victim
	for name, r := range b.rooms {
		for id, c := range r.members {
			if c.idleSince() > maxIdle {
				victims = append(victims, victim{room: name, client: c})
				delete(r.members, id)
			}
		}
	}
	b.mu.Unlock()

	for _, v := range victims {
		v.client.conn.Close()
	}
	return len(victims)
}

// Stats is a snapshot of bus activity for the status endpoint.
type Stats struct {
	RoomCounts    map[string]int `json:"roomCounts"`
	TotalEver     int64          `json:"totalEver"`
	TotalMessages int64          `json:"totalMessages"`
}

// Stats returns current room membership counts and lifetime counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[string]int, len(b.rooms))
	for name, r := range b.rooms {
		counts[name] = len(r.members)
	}
	return Stats{RoomCounts: counts, TotalEver: b.totalEver, TotalMessages: b.totalMessages}
}
