package debugapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultStreamBuffer = 64
	defaultWriteTimeout = 2 * time.Second
)

// Envelope frames every message pushed to stream clients.
type Envelope struct {
	Type      string          `json:"type"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Debug tooling only; any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published envelopes out to websocket clients. Publish never blocks:
// a client whose buffer is full is dropped.
type Hub struct {
	logger       *log.Logger
	buffer       int
	writeTimeout time.Duration
	seq          atomic.Uint64

	mu      sync.Mutex
	clients map[uuid.UUID]*client
	closed  bool
}

func NewHub(buffer int, writeTimeout time.Duration, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = log.New(log.Writer(), "debugapi ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Hub{
		logger:       logger,
		buffer:       buffer,
		writeTimeout: writeTimeout,
		clients:      make(map[uuid.UUID]*client),
	}
}

// Publish encodes payload once and queues it for every client.
func (h *Hub) Publish(msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("encode %s payload: %v", msgType, err)
		return
	}
	data, err := json.Marshal(Envelope{
		Type:      msgType,
		Seq:       h.seq.Add(1),
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		h.logger.Printf("encode %s envelope: %v", msgType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Printf("stream client %s too slow, dropping", id)
			h.dropLocked(c)
		}
	}
}

// ServeWS upgrades the request and streams envelopes until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade stream connection: %v", err)
		return
	}
	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Printf("stream client %s connected from %s", c.id, r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and unregisters on the first error.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
	h.logger.Printf("stream client %s disconnected", c.id)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Printf("write to stream client %s: %v", c.id, err)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
}

// Clients is the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		h.dropLocked(c)
	}
}
