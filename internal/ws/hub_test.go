package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/session"

	"github.com/google/uuid"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.msgs))
	for _, m := range c.msgs {
		var v map[string]any
		_ = json.Unmarshal(m, &v)
		out = append(out, v)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestPublishIsScopedToWarehouse(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	whA, whB := uuid.New(), uuid.New()
	a, b, none := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register <- &Client{Conn: a, UserID: uuid.New(), Warehouse: &whA}
	hub.Register <- &Client{Conn: b, UserID: uuid.New(), Warehouse: &whB}
	hub.Register <- &Client{Conn: none, UserID: uuid.New()}

	hub.Publish("inflow_created", whA, map[string]any{"action": "inflow_created"})
	waitFor(t, func() bool { return len(a.received()) == 1 })

	hub.Publish("user_status_update", uuid.Nil, map[string]any{"status": "online"})
	waitFor(t, func() bool { return len(none.received()) == 1 && len(b.received()) == 1 })

	if got := b.received()[0]["type"]; got != "user_status_update" {
		t.Fatalf("warehouse B should only see the unscoped message, got %v", got)
	}
	if got := a.received()[0]["type"]; got != "inflow_created" {
		t.Fatalf("expected type to default to the event name, got %v", got)
	}
}

func TestCacheInvalidatedCarriesPrefixes(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	wh := uuid.New()
	conn := &fakeConn{}
	hub.Register <- &Client{Conn: conn, UserID: uuid.New(), Warehouse: &wh}

	prefixes := cache.Prefixes(cache.OpPaymentCreated, wh)
	hub.CacheInvalidated(cache.OpPaymentCreated, wh, prefixes)
	waitFor(t, func() bool { return len(conn.received()) == 1 })

	msg := conn.received()[0]
	if msg["type"] != "cache_invalidated" || msg["op"] != string(cache.OpPaymentCreated) {
		t.Fatalf("unexpected message %v", msg)
	}
	if got := msg["prefixes"].([]any); len(got) != len(prefixes) {
		t.Fatalf("expected %d prefixes, got %d", len(prefixes), len(got))
	}
}

func TestSessionChangedTargetsUserAndRetargetsWarehouse(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	user, other := uuid.New(), uuid.New()
	mine, theirs := &fakeConn{}, &fakeConn{}
	hub.Register <- &Client{Conn: mine, UserID: user}
	hub.Register <- &Client{Conn: theirs, UserID: other}

	wh := uuid.New()
	hub.SessionChanged(session.Transition{UserID: user, From: session.StateResolving, To: session.StateReady, Event: session.EventWarehouseSelected, WarehouseID: &wh})
	waitFor(t, func() bool { return len(mine.received()) == 1 })

	hub.Publish("lot_occupancy_changed", wh, map[string]any{})
	waitFor(t, func() bool { return len(mine.received()) == 2 })

	if n := len(theirs.received()); n != 0 {
		t.Fatalf("other user should receive nothing, got %d messages", n)
	}
}

func TestUnregisterClosesConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn := &fakeConn{}
	hub.Register <- &Client{Conn: conn, UserID: uuid.New()}
	hub.Unregister <- conn
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Fatalf("expected connection to be closed")
	}
}
