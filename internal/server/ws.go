package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/emitter"
)

const (
	liveSendBuffer = 8
	liveWriteWait  = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event is one message pushed to live clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type liveClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() { close(c.send) })
}

// LiveHub pushes live readings to websocket clients. It is an emitter.Emitter; Emit never
// blocks on a slow client, which instead loses messages.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[string]*liveClient
	count   *atomic.Int64
	dropped atomic.Uint64
}

// NewLiveHub creates a hub. count, when non-nil, tracks the number of connected clients.
func NewLiveHub(count *atomic.Int64) *LiveHub {
	if count == nil {
		count = new(atomic.Int64)
	}
	return &LiveHub{clients: make(map[string]*liveClient), count: count}
}

// ServeHTTP upgrades the request and registers the client until it disconnects.
func (h *LiveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &liveClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, liveSendBuffer)}
	hello, _ := json.Marshal(Event{Event: "connection_status", Data: map[string]string{"status": "connected", "client_id": c.id}})
	c.send <- hello

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.count.Add(1)
	log.Info().Str("client", c.id).Msg("live client connected")

	go h.writeLoop(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *LiveHub) writeLoop(c *liveClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Str("client", c.id).Msg("live write failed")
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *LiveHub) remove(c *liveClient) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		h.count.Add(-1)
		c.close()
		log.Info().Str("client", c.id).Msg("live client disconnected")
	}
}

// Emit sends r to every connected client as a "measurements" event.
func (h *LiveHub) Emit(_ context.Context, r emitter.Reading) error {
	msg, err := json.Marshal(Event{Event: "measurements", Data: r})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Count returns the number of connected clients.
func (h *LiveHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *LiveHub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every client.
func (h *LiveHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*liveClient)
	h.mu.Unlock()
	for _, c := range clients {
		h.count.Add(-1)
		c.close()
	}
}
