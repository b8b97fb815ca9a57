// Package live pushes the whale feed to browsers over websockets after every
// refresh cycle.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/store"
)

const (
	// WriteTimeout bounds every frame written to a client.
	WriteTimeout = 10 * time.Second
	// PongTimeout is how long a client may stay silent before it is dropped.
	PongTimeout = 60 * time.Second
	// PingInterval must be shorter than PongTimeout.
	PingInterval = 50 * time.Second

	// MessageTypeWhales tags feed snapshots.
	MessageTypeWhales = "whales"

	sendBuffer = 8
)

// Message is the frame pushed to clients.
type Message struct {
	Type   string       `json:"type"`
	Trades []store.Card `json:"trades"`
	Stats  MessageStats `json:"stats"`
}

// MessageStats summarises the cycle that produced a Message.
type MessageStats struct {
	New   int   `json:"new"`
	Total int   `json:"total"`
	Ms    int64 `json:"ms"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans cycle results out to connected websocket clients. New clients
// receive the latest snapshot on connect.
type Hub struct {
	upgrader websocket.Upgrader
	limit    int

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

// NewHub creates a Hub that pushes at most limit cards per message.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 20
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: WriteTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		limit:   limit,
		clients: make(map[*client]struct{}),
	}
}

// Publish pushes res to every client. Failed cycles are not pushed; clients
// keep the last good snapshot.
func (h *Hub) Publish(res engine.Result) {
	if !res.OK {
		return
	}

	trades := res.Trades
	if len(trades) > h.limit {
		trades = trades[:h.limit]
	}
	cards := make([]store.Card, 0, len(trades))
	for _, t := range trades {
		cards = append(cards, detector.Card(t))
	}

	data, err := json.Marshal(Message{
		Type:   MessageTypeWhales,
		Trades: cards,
		Stats: MessageStats{
			New:   res.Stats.NewCount,
			Total: res.Stats.TotalCount,
			Ms:    res.Stats.DurationMs(),
		},
	})
	if err != nil {
		slog.Error("ws_encode_failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer
			slog.Warn("ws_client_dropped", "remote", c.conn.RemoteAddr().String(), "reason", "send buffer full")
			delete(h.clients, c)
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams snapshots until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws_upgrade_failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	slog.Info("ws_client_connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop discards client frames and keeps the read deadline fresh on pongs.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("ws_read_error", "error", err)
			}
			return
		}
	}
}

// writeLoop drains the send queue and pings the client.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		slog.Info("ws_client_disconnected", "remote", c.conn.RemoteAddr().String())
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("ws_write_failed", "error", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Warn("ws_ping_failed", "error", err)
				h.remove(c)
				return
			}
		}
	}
}
