package ws

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/coordinator"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/id"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// TabQuery selects the tab a stream subscribes to.
const TabQuery = "tab"

// Hub fans coordinator messages out to connected render layers. A client
// subscribed to a tab receives only that tab's messages; a client without a
// tab receives everything.
type Hub struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id    string
	tabID string
	conn  *websocket.Conn
	send  chan []byte
}

// NewHub creates a hub. metrics and logger may be nil.
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.Named("ws"),
		metrics: metrics,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

// allowOrigin accepts browser extensions, loopback pages and non-browser
// clients that send no Origin.
func allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "chrome-extension", "moz-extension", "safari-web-extension":
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// Notify implements coordinator.Notifier. Slow clients drop messages rather
// than block the coordinator.
func (h *Hub) Notify(msg coordinator.Message) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("action", msg.Action), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.tabID != "" && c.tabID != msg.TabID {
			continue
		}
		select {
		case c.send <- data:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", msg.Action)
			}
		default:
			h.logger.Warn("Client too slow, message dropped",
				zap.String("client_id", c.id),
				zap.String("tab_id", msg.TabID),
				zap.String("action", msg.Action))
		}
	}
}

// HandleConnection upgrades GET /stream?tab=<id> and serves the client
// until it disconnects or the hub closes.
func (h *Hub) HandleConnection(c *gin.Context) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:    id.NewClientID().String(),
		tabID: strings.TrimSpace(c.Query(TabQuery)),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}
	if !h.register(cl) {
		conn.Close()
		return
	}

	h.reply(cl, map[string]any{
		"action":   "connected",
		"clientId": cl.id,
		"tabId":    cl.tabID,
	})

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Debug("Client connected", zap.String("client_id", c.id), zap.String("tab_id", c.tabID))
	return true
}

// unregister closes the client's send channel exactly once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.logger.Debug("Client disconnected", zap.String("client_id", c.id))
}

type inbound struct {
	Type string `json:"type"`
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.reply(c, map[string]any{"action": "error", "message": "invalid message"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		switch msg.Type {
		case "ping":
			h.reply(c, map[string]any{"action": "pong"})
		default:
			h.reply(c, map[string]any{"action": "error", "message": "unknown message type"})
		}
	}
}

// reply queues a message for c unless it has been unregistered.
func (h *Hub) reply(c *client, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if h.metrics != nil {
			h.metrics.DecWSConnections()
		}
	}
	h.logger.Info("WebSocket hub closed")
}
