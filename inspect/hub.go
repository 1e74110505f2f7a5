package inspect

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var errHubClosed = errors.New("inspect: hub closed")

// client is one websocket subscriber. gorilla connections allow a single
// concurrent writer, so writes hold mu.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writeLocked(data)
}

// writeLocked writes data. c.mu must be held.
func (c *client) writeLocked(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// hub fans snapshots out to websocket clients.
type hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
	closed   bool

	// last is the most recent broadcast; a new client starts from it.
	last []byte
}

func newHub(logger *slog.Logger, checkOrigin func(*http.Request) bool) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// serve upgrades the request, sends the latest snapshot and keeps the
// connection until the peer goes away. The latest snapshot is the last
// broadcast, or first when nothing was broadcast yet. Broadcasts reach the
// client only after it. Incoming messages are discarded.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, first func() any) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		return
	}

	c := &client{conn: conn}

	err = h.register(c, first)
	if errors.Is(err, errHubClosed) {
		conn.Close()
		return
	}

	defer h.remove(c)

	if err != nil {
		h.logger.Debug("dropping websocket client", "error", err)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// register adds c and writes its first snapshot. c.mu is held from before
// c becomes visible to broadcast until the snapshot is written.
func (h *hub) register(c *client, first func() any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errHubClosed
	}
	h.clients[c] = struct{}{}
	data := h.last
	h.mu.Unlock()

	if data == nil {
		var err error
		if data, err = json.Marshal(first()); err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
	}

	return c.writeLocked(data)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.conn.Close()
	}
}

// broadcast sends v to every client. Clients failing the write are
// dropped.
func (h *hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("encoding snapshot", "error", err)
		return
	}

	h.mu.Lock()
	h.last = data
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.logger.Debug("dropping websocket client", "error", err)
			h.remove(c)
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.closed = true
	h.mu.Unlock()

	for c := range clients {
		c.conn.Close()
	}
}
