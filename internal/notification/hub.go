package notification

import (
	"context"
	"net/http"
	"sync"
	"time"

	"payvost/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	clientBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // admin routes are already behind JWT
	},
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams events to connected admin dashboards.
type Hub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	logger  logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*feedClient]struct{}),
		logger:  log,
	}
}

func (h *Hub) Name() string { return "admin_feed" }

// Deliver queues the event for every client. A client whose buffer is full is dropped.
func (h *Hub) Deliver(_ context.Context, ev *Event) error {
	payload, err := ev.marshal()
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*feedClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow feed client", nil)
		h.remove(c)
	}
	return nil
}

// Clients returns the number of connected listeners.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Feed client connected", map[string]interface{}{"clients": h.Clients()})

	go h.readLoop(c)
	h.writeLoop(r.Context(), c)
}

// readLoop discards inbound frames; it exists to notice the close.
func (h *Hub) readLoop(c *feedClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *feedClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
	h.mu.Unlock()
}
