// Package ws pushes signal bus events to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/server/middleware"
)

// busPatterns are the signal bus channels bridged to browsers.
var busPatterns = []string{
	"markets.*",
	domain.ChannelAlertsPrefix + "*",
}

// defaultChannels are joined by every client on connect.
var defaultChannels = []string{
	domain.ChannelMarketsUpdated,
	domain.ChannelMarketPrices,
}

// envelope wraps every frame pushed to clients.
type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Config carries the metadata reported in status frames and the origins
// allowed to open a socket.
type Config struct {
	Mode           string
	StartedAt      time.Time
	AllowedOrigins []string
}

// Hub fans bus messages out to the sockets subscribed to each channel. A
// user's alert channel is only ever delivered to that user.
type Hub struct {
	bus      domain.SignalBus
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mode      string
	startedAt time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	join    chan *client
	leave   chan *client
	done    chan struct{}
}

// NewHub creates a Hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	started := cfg.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger:    logger.With(slog.String("component", "ws_hub")),
		mode:      mode,
		startedAt: started,
		clients:   make(map[*client]struct{}),
		join:      make(chan *client),
		leave:     make(chan *client),
		done:      make(chan struct{}),
	}
}

// originChecker accepts requests without an Origin, same-host origins and
// the configured list, where "*" accepts everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		return strings.EqualFold(host, r.Host)
	}
}

// Run subscribes to the bus and serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	msgs, err := h.bus.Subscribe(ctx, busPatterns...)
	if err != nil {
		return fmt.Errorf("ws: subscribe %v: %w", busPatterns, err)
	}
	h.logger.Info("ws: bridging bus", slog.Any("patterns", busPatterns))
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.join:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client joined", slog.String("user_id", c.userID), slog.Int("clients", n))

		case c := <-h.leave:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client left", slog.String("user_id", c.userID), slog.Int("clients", n))

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("ws: bus subscription closed")
			}
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg domain.BusMessage) {
	frame, err := json.Marshal(envelope{Type: "event", Channel: msg.Channel, Payload: rawJSON(msg.Payload)})
	if err != nil {
		h.logger.Warn("ws: encode frame", slog.String("channel", msg.Channel), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.wants(msg.Channel) && !c.enqueue(frame) {
			h.logger.Warn("ws: slow client, frame dropped",
				slog.String("user_id", c.userID),
				slog.String("channel", msg.Channel),
			)
		}
	}
}

// rawJSON passes JSON payloads through and encodes anything else as a string.
func rawJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return b
	}
	q, _ := json.Marshal(string(b))
	return q
}

// HandleWS upgrades the request and attaches the socket to the hub. The
// caller's user id, when present, joins its alert channel.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, middleware.UserID(r.Context()))
	select {
	case h.join <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.enqueue(c.statusFrame())

	go c.writeLoop()
	go c.readLoop()
}

func (h *Hub) uptime() int64 {
	if s := int64(time.Since(h.startedAt).Seconds()); s > 0 {
		return s
	}
	return 0
}
