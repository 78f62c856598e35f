// Package feed broadcasts executed trades to WebSocket subscribers.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/observability"
)

// HubConfig configures hub behavior.
type HubConfig struct {
	// SendBuffer is per-client outbound message buffer size.
	SendBuffer int
	// WriteTimeout is timeout for writing messages to a client.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout is how long to wait for a pong before dropping the client.
	PongTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
	}
}

// TradeEvent is the wire format for a broadcast trade.
type TradeEvent struct {
	Type           string  `json:"type"`
	PoolID         string  `json:"pool_id"`
	TradeID        string  `json:"trade_id"`
	Seq            int64   `json:"seq"`
	Side           string  `json:"side"`
	AmountIn       uint64  `json:"amount_in"`
	AmountOut      uint64  `json:"amount_out"`
	FeePaid        uint64  `json:"fee_paid"`
	Price          float64 `json:"price"`
	PriceImpactBps uint32  `json:"price_impact_bps"`
	Graduating     bool    `json:"graduating,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// PoolEvent is the wire format for a pool lifecycle broadcast.
type PoolEvent struct {
	Type   string `json:"type"`
	PoolID string `json:"pool_id"`
	State  string `json:"state"`
}

// client is a single subscriber connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans executed trades out to connected WebSocket clients.
// Slow clients whose send buffer fills are dropped rather than
// allowed to stall the broadcast path.
type Hub struct {
	config HubConfig
	logger *log.Logger

	clients   map[*client]struct{}
	clientsMu sync.Mutex

	upgrader websocket.Upgrader
	closed   atomic.Bool
}

// NewHub creates a hub. A nil config uses defaults.
func NewHub(config *HubConfig, logger *log.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Hub{
		config:  cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed is read-only public data.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the HTTP connection and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
	}

	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()
	observability.DefaultMetrics.FeedSubscribers.Set(float64(n))

	go h.writeLoop(c)
	go h.readLoop(c)
}

// BroadcastTrade publishes an executed trade to all subscribers.
func (h *Hub) BroadcastTrade(trade *domain.Trade, graduating bool) {
	event := TradeEvent{
		Type:           "trade",
		PoolID:         trade.PoolID,
		TradeID:        trade.ID,
		Seq:            trade.Seq,
		Side:           string(trade.Side),
		AmountIn:       trade.AmountIn,
		AmountOut:      trade.AmountOut,
		FeePaid:        trade.FeePaid,
		Price:          trade.ExecutionPrice,
		PriceImpactBps: trade.PriceImpactBps,
		Graduating:     graduating,
		Timestamp:      trade.Timestamp,
	}
	h.broadcast(event)
}

// BroadcastPoolState publishes a pool lifecycle transition.
func (h *Hub) BroadcastPoolState(poolID string, state domain.PoolState) {
	h.broadcast(PoolEvent{Type: "pool_state", PoolID: poolID, State: string(state)})
}

func (h *Hub) broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("marshal feed event: %v", err)
		return
	}

	var dropped []*client
	h.clientsMu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Buffer full: the client cannot keep up.
			delete(h.clients, c)
			dropped = append(dropped, c)
		}
	}
	n := len(h.clients)
	h.clientsMu.Unlock()

	for _, c := range dropped {
		close(c.send)
		observability.DefaultMetrics.FeedClientsDropped.Inc()
	}
	if len(dropped) > 0 {
		observability.DefaultMetrics.FeedSubscribers.Set(float64(n))
		h.logger.Printf("dropped %d slow feed clients", len(dropped))
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}

	h.clientsMu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMu.Unlock()
	observability.DefaultMetrics.FeedSubscribers.Set(0)
}

// remove unregisters a client if still present. Returns true if the
// caller is responsible for closing the send channel.
func (h *Hub) remove(c *client) bool {
	h.clientsMu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		observability.DefaultMetrics.FeedSubscribers.Set(float64(n))
	}
	return ok
}

// writeLoop pumps messages from the send channel to the connection.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				// Hub dropped or closed this client.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if h.remove(c) {
					close(c.send)
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.remove(c) {
					close(c.send)
				}
				return
			}
		}
	}
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if h.remove(c) {
				close(c.send)
			}
			return
		}
	}
}
