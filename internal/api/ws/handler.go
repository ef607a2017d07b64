// Package ws exposes the forum coordinator over websocket connections.
package ws

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtroode/mindhealer-server/internal/forum"
	"github.com/dtroode/mindhealer-server/internal/logger"
)

type Handler struct {
	coordinator *forum.Coordinator
	upgrader    websocket.Upgrader
	logger      *logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHandler builds a handler accepting browser connections from allowedOrigins.
// A "*" entry allows any origin.
func NewHandler(coordinator *forum.Coordinator, allowedOrigins []string, logger *logger.Logger) *Handler {
	h := &Handler{
		coordinator: coordinator,
		logger:      logger,
		clients:     make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("WS: failed to upgrade connection",
			"remote_addr", r.RemoteAddr,
			"origin", r.Header.Get("Origin"),
			"error", err.Error())
		return
	}

	c := newClient(h.coordinator, conn, h.logger)
	if !h.track(c) {
		goingAway(conn)
		conn.Close()
		return
	}
	c.id = h.coordinator.Connect(c)

	go c.writePump()
	go func() {
		c.readPump()
		h.untrack(c)
	}()
}

// Close sends a going-away frame to every open connection and closes it. The
// read pumps then remove the participants from the forum. Connections upgraded
// after Close are rejected the same way.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		goingAway(c.conn)
		c.conn.Close()
	}

	h.logger.Info("WS: connections closed", "count", len(h.clients))
}

func (h *Handler) track(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Handler) untrack(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func goingAway(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func originChecker(allowed []string) func(*http.Request) bool {
	wildcard := slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no origin
		if origin == "" || wildcard {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
