package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/types"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// wsConn is the write side of a WebSocket connection.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Hub fans events out to every connected observer. A client whose buffer is
// full or whose connection fails is evicted; the others are unaffected.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Publish sends event to all clients. It never blocks on a client and is safe
// for concurrent use. Its signature matches types.EventEmitter.
func (h *Hub) Publish(event *types.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warnf("Dropping %s event: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		if h.remove(c, true) {
			h.logger.Debugf("Evicted slow client %s", c.id)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(id string, conn wsConn) *client {
	c := &client{id: id, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientConnected()
	return c
}

// remove detaches c and closes its queue. It reports whether c was still
// registered.
func (h *Hub) remove(c *client, evicted bool) bool {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()

	if ok {
		h.metrics.ClientDisconnected(evicted)
	}
	return ok
}

type client struct {
	id   string
	conn wsConn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue queues data without blocking. It returns false when the queue is
// full or already closed.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendEvent queues event for this client only.
func (c *client) sendEvent(event *types.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	return c.enqueue(data)
}

// writeLoop drains the queue onto the connection until the queue is closed
// or a write fails. It closes the connection on exit.
func (c *client) writeLoop() error {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
