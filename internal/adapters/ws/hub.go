// Package ws fans game events out to every connected viewer over
// WebSocket. Delivery is best effort: a slow or dead viewer is
// disconnected rather than allowed to stall the rest.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/ballpark/internal/domain/events"
	"github.com/okian/ballpark/pkg/logger"
	"github.com/okian/ballpark/pkg/metrics"
)

// Hub owns the viewer connection set and the broadcast loop. It
// satisfies the service's Bus and ViewerCounter dependencies.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	upgrader    websocket.Upgrader
	broadcastCh chan events.Event

	sendBuffer      int
	broadcastBuffer int
	writeTimeout    time.Duration
	readTimeout     time.Duration
	pingInterval    time.Duration
	maxMessageSize  int64
	allowedOrigins  []string

	logger logger.Logger
}

// NewHub constructs a hub with default connection tuning.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:         make(map[*client]bool),
		sendBuffer:      256,
		broadcastBuffer: 1024,
		writeTimeout:    10 * time.Second,
		readTimeout:     60 * time.Second,
		pingInterval:    30 * time.Second,
		maxMessageSize:  512,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = logger.Get()
	}
	h.broadcastCh = make(chan events.Event, h.broadcastBuffer)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin admits browsers from the configured origins. Requests
// without an Origin header come from non-browser clients and pass.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Run processes broadcasts until ctx is cancelled, then closes every
// viewer connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info(ctx, "broadcast hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info(ctx, "broadcast hub shutting down")
			h.closeAll()
			return
		case e := <-h.broadcastCh:
			h.broadcast(ctx, e)
		}
	}
}

// Publish queues an event for fan-out. It never blocks the caller:
// when the hub is backed up the event is dropped and counted.
func (h *Hub) Publish(e events.Event) {
	select {
	case h.broadcastCh <- e:
	default:
		h.logger.Warn(context.Background(), "broadcast channel full, dropping event",
			logger.String("type", string(e.Type)),
		)
		metrics.RecordEventDropped("hub_backlog")
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnect upgrades an HTTP request to a viewer connection. The
// upgrader writes its own error response when the handshake fails.
func (h *Hub) HandleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "failed to upgrade viewer connection", logger.Error(err))
		return
	}

	c := &client{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, h.sendBuffer),
		hub:         h,
		connectedAt: time.Now(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info(context.Background(), "viewer connected",
		logger.String("clientID", c.id),
		logger.Int("viewers", total),
	)
	metrics.RecordClientConnected()
	metrics.UpdateConnectedClients(total)
}

// unregister removes a client and closes its send channel exactly
// once. Both pumps call it on exit; the membership check makes the
// second call a no-op.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info(context.Background(), "viewer disconnected",
		logger.String("clientID", c.id),
		logger.Int("viewers", total),
	)
	metrics.RecordClientDisconnected()
	metrics.UpdateConnectedClients(total)
}

// broadcast fans one event out to every viewer. Sends and channel
// closes are both serialized under the hub mutex, so a pump tearing a
// client down can never race a send into its closed channel.
func (h *Hub) broadcast(ctx context.Context, e events.Event) {
	// Marshal once, send the same bytes to everyone.
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error(ctx, "failed to marshal event for broadcast", logger.Error(err))
		return
	}

	h.mu.Lock()
	viewers := len(h.clients)
	if viewers == 0 {
		h.mu.Unlock()
		return
	}
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	remaining := len(h.clients)
	h.mu.Unlock()

	// The slow viewers were not keeping up; cut them loose instead of
	// stalling the broadcast loop.
	for _, c := range slow {
		h.logger.Warn(ctx, "viewer send buffer full, closing connection",
			logger.String("clientID", c.id),
		)
		metrics.RecordEventDropped("slow_viewer")
		metrics.RecordClientDisconnected()
		_ = c.conn.Close()
	}
	if len(slow) > 0 {
		metrics.UpdateConnectedClients(remaining)
	}

	h.logger.Debug(ctx, "event broadcast",
		logger.String("type", string(e.Type)),
		logger.Int("viewers", viewers),
	)
	metrics.RecordEventBroadcast(string(e.Type))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
		_ = c.conn.Close()
	}
}
