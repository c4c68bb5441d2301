package handlers

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a message pushed to WebSocket clients
type Event struct {
	Type    string           `json:"type"`
	Message string           `json:"message,omitempty"`
	Answer  string           `json:"answer,omitempty"`
	Sources []SourceResponse `json:"sources,omitempty"`
	Files   []string         `json:"files,omitempty"`
}

const (
	EventProcessing         = "processing"
	EventSources            = "sources"
	EventGenerating         = "generating"
	EventResponse           = "response"
	EventError              = "error"
	EventProcessingStart    = "processing_start"
	EventProcessingComplete = "processing_complete"
)

// DefaultWriteWait bounds one write to a client; a client that cannot take
// an event in time is dropped.
const DefaultWriteWait = 10 * time.Second

// Broadcaster fans an event out to every connected client
type Broadcaster interface {
	Broadcast(event Event)
}

// client serialises writes; gorilla connections allow one writer at a time.
type client struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	writeWait time.Duration
}

func (c *client) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// Hub tracks open WebSocket connections
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	writeWait time.Duration
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{}), writeWait: DefaultWriteWait}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, writeWait: h.writeWait}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends event to all clients. Clients that fail to receive it
// are dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(event); err != nil {
			h.remove(c)
			c.conn.Close()
		}
	}
}
