package ws

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polybets/polybet/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingEvery      = pongWait * 9 / 10
	maxFrameSize   = 4096
	sendQueueDepth = 256
)

// subscribeMsg is sent by clients to change their channel set.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// client is one browser socket.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu   sync.RWMutex
	subs map[string]bool

	// sendMu guards send against use after close.
	sendMu sync.Mutex
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *client {
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendQueueDepth),
		userID: userID,
		subs:   make(map[string]bool, len(defaultChannels)+1),
	}
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}
	if userID != "" {
		c.subs[domain.AlertChannel(userID)] = true
	}
	return c
}

// enqueue queues a frame without blocking and reports whether it fit. Frames
// queued after close are dropped.
func (c *client) enqueue(frame []byte) bool {
	if frame == nil {
		return false
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close ends the send queue, which makes writeLoop send a close frame. It is
// safe to call more than once.
func (c *client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readLoop applies subscription requests until the socket fails. Each
// accepted request is answered with a fresh status frame.
func (c *client) readLoop() {
	defer func() {
		select {
		case c.hub.leave <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: read failed",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg subscribeMsg
		if json.Unmarshal(data, &msg) != nil || msg.Action == "" {
			continue
		}
		if c.handleSubscription(msg) {
			c.enqueue(c.statusFrame())
		}
	}
}

// writeLoop drains the send queue and keeps the socket alive with pings.
func (c *client) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleSubscription applies msg and reports whether the action was known.
// Channels outside the market namespace and other users' alert channels are
// ignored.
func (c *client) handleSubscription(msg subscribeMsg) bool {
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Channels {
		if !c.mayJoin(ch) {
			continue
		}
		if msg.Action == "subscribe" {
			c.subs[ch] = true
		} else {
			delete(c.subs, ch)
		}
	}
	return true
}

func (c *client) mayJoin(channel string) bool {
	if strings.HasPrefix(channel, domain.ChannelAlertsPrefix) {
		return c.userID != "" && channel == domain.AlertChannel(c.userID)
	}
	return strings.HasPrefix(channel, "markets.")
}

// wants reports whether channel matches one of the client's subscriptions.
// A trailing "*" matches by prefix.
func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

// statusFrame describes the connection so a client can show it as live
// before any market event arrives.
func (c *client) statusFrame() []byte {
	c.mu.RLock()
	channels := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		channels = append(channels, ch)
	}
	c.mu.RUnlock()
	slices.Sort(channels)

	payload, err := json.Marshal(map[string]any{
		"mode":           c.hub.mode,
		"uptime_seconds": c.hub.uptime(),
		"user_id":        c.userID,
		"channels":       channels,
	})
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(envelope{Type: "status", Payload: payload})
	if err != nil {
		return nil
	}
	return frame
}
