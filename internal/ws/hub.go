package ws

import (
	"encoding/json"
	"sync"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one dashboard connection. A nil Warehouse receives only
// unscoped messages.
type Client struct {
	Conn      Conn
	UserID    uuid.UUID
	Warehouse *uuid.UUID
}

// Message is delivered to every client of Warehouse (uuid.Nil: all clients),
// or only to User's clients when User is set.
type Message struct {
	Warehouse uuid.UUID
	User      *uuid.UUID
	Data      []byte
}

type Hub struct {
	Clients    map[Conn]*Client
	Register   chan *Client
	Unregister chan Conn
	Broadcast  chan Message
	mutex      sync.Mutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[Conn]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan Conn),
		Broadcast:  make(chan Message, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	log := logger.Get()
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.Clients[client.Conn] = client
			h.mutex.Unlock()
			log.WithField("user_id", client.UserID).Info("ws client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case msg := <-h.Broadcast:
			h.mutex.Lock()
			for conn, client := range h.Clients {
				if !client.wants(msg) {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			return
		}
	}
}

// Stop ends Run. Connected clients stay open.
func (h *Hub) Stop() {
	close(h.done)
}

func (c *Client) wants(m Message) bool {
	if m.User != nil {
		return c.UserID == *m.User
	}
	if m.Warehouse == uuid.Nil {
		return true
	}
	return c.Warehouse != nil && *c.Warehouse == m.Warehouse
}

// Publish queues payload for the clients of warehouseID without blocking the caller.
func (h *Hub) Publish(event string, warehouseID uuid.UUID, payload map[string]any) {
	h.send(Message{Warehouse: warehouseID}, event, payload)
}

func (h *Hub) send(m Message, event string, payload map[string]any) {
	if _, ok := payload["type"]; !ok {
		payload["type"] = event
	}
	if _, ok := payload["event"]; !ok {
		payload["event"] = event
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.LogError(logger.Get(), "ws", "Publish", "failed to encode message", event, err)
		return
	}
	m.Data = data
	go func() {
		select {
		case h.Broadcast <- m:
		case <-h.done:
		}
	}()
}

// CacheInvalidated tells the warehouse's dashboards which cached views to refetch.
func (h *Hub) CacheInvalidated(op cache.Op, warehouseID uuid.UUID, prefixes []string) {
	h.send(Message{Warehouse: warehouseID}, "cache_invalidated", map[string]any{
		"op":       string(op),
		"prefixes": prefixes,
	})
}

// SessionChanged tells a user's own connections about their session transitions.
func (h *Hub) SessionChanged(t session.Transition) {
	user := t.UserID
	h.send(Message{User: &user}, "session_changed", map[string]any{
		"user_id":      t.UserID,
		"from":         t.From,
		"to":           t.To,
		"event":        t.Event,
		"warehouse_id": t.WarehouseID,
	})
	if t.To == session.StateReady {
		h.retarget(t.UserID, t.WarehouseID)
	}
}

// retarget moves a user's connections to the warehouse they just selected.
func (h *Hub) retarget(userID uuid.UUID, warehouseID *uuid.UUID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, c := range h.Clients {
		if c.UserID == userID {
			if warehouseID == nil {
				c.Warehouse = nil
				continue
			}
			w := *warehouseID
			c.Warehouse = &w
		}
	}
}

// ClientCount is the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}
