package realtime

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sonderhq/sonder-server/pkg/logger"
	"github.com/sonderhq/sonder-server/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16

	sendBufferSize = 32
)

// Event names pushed to connected clients.
const (
	EventNewSession   = "NEW_SESSION"
	EventNewMessage   = "NEW_MESSAGE"
	EventNotification = "NOTIFICATION"
)

// Event is a JSON payload pushed to a connected client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub tracks at most one live WebSocket connection per user. Opening a second
// connection for the same user replaces the first; delivery to a user without
// a connection reports offline rather than failing.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*connection
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs an empty connection registry.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*connection),
		log:   logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the request to a WebSocket and registers it for userID,
// blocking until the connection closes. Inbound frames are read only to keep
// the connection alive; clients receive events, they do not send them here.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &connection{
		hub:    h,
		socket: socket,
		userID: userID,
		send:   make(chan Event, sendBufferSize),
	}
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// Deliver pushes an event to the user's live connection. It reports whether
// the event was handed to a connection; false means the user is offline or
// the connection is too far behind and was dropped.
func (h *Hub) Deliver(userID string, event Event) bool {
	h.mu.RLock()
	client := h.conns[userID]
	h.mu.RUnlock()

	if client == nil {
		metrics.LiveDeliveries.WithLabelValues("offline").Inc()
		return false
	}

	switch client.enqueue(event) {
	case enqueueOK:
		metrics.LiveDeliveries.WithLabelValues("delivered").Inc()
		return true
	case enqueueFull:
		metrics.LiveDeliveries.WithLabelValues("dropped").Inc()
		h.log.Warn("dropping backpressured connection", zap.String("user_id", userID))
		client.close()
		return false
	default: // enqueueClosed
		metrics.LiveDeliveries.WithLabelValues("offline").Inc()
		return false
	}
}

// IsOnline reports whether the user currently has a registered connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	previous := h.conns[client.userID]
	h.conns[client.userID] = client
	h.mu.Unlock()

	metrics.LiveConnections.Inc()
	if previous != nil {
		previous.close()
	}
}

// unregister removes the client if it is still the registered connection for
// its user. A connection replaced by a newer one must not evict its successor.
func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	if h.conns[client.userID] == client {
		delete(h.conns, client.userID)
	}
	h.mu.Unlock()

	metrics.LiveConnections.Dec()
}

type enqueueResult int

const (
	enqueueOK enqueueResult = iota
	enqueueFull
	enqueueClosed
)

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	send   chan Event
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

// enqueue hands the event to the write loop without blocking. The mutex keeps
// the send ordered against close, so a connection torn down mid-delivery
// reports closed instead of sending on a closed channel.
func (c *connection) enqueue(event Event) enqueueResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return enqueueClosed
	}

	select {
	case c.send <- event:
		return enqueueOK
	default:
		return enqueueFull
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Payloads are discarded; reading drives pong handling and close detection.
		if _, _, err := c.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if req, err := http.NewRequest(http.MethodGet, host, nil); err == nil {
			return hostWithoutPort(req.URL.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
