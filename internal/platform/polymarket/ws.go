package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polybets/polybet/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

var errStreamClosed = errors.New("price stream closed")

// PriceHandler is called for every market price update received.
type PriceHandler func(domain.PriceUpdate)

// rtdsCommand is the subscribe/unsubscribe payload of the real-time data
// service.
type rtdsCommand struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// rtdsMessage is an inbound market update. The price field holds either a
// JSON-encoded array string or a plain array.
type rtdsMessage struct {
	Topic    string `json:"topic"`
	Channel  string `json:"channel"`
	MarketID string `json:"marketId"`
	Data     struct {
		OutcomePrices json.RawMessage `json:"outcomePrices"`
		Price         json.RawMessage `json:"price"`
		Closed        bool            `json:"closed"`
	} `json:"data"`
}

// PriceStream is a WebSocket client for the Polymarket real-time data
// service. It subscribes to per-market topics and dispatches leading-outcome
// price updates to registered handlers.
type PriceStream struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Topics to restore on reconnect.
	topics map[string]struct{}

	handlers  []PriceHandler
	handlerMu sync.RWMutex

	now func() time.Time

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewPriceStream creates a client for the given RTDS root, e.g.
// "wss://rtds.polymarket.com".
func NewPriceStream(rtdsURL string) *PriceStream {
	return &PriceStream{
		wsURL:  strings.TrimRight(rtdsURL, "/") + "/ws",
		topics: make(map[string]struct{}),
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (p *PriceStream) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("polymarket/ws: %w", errStreamClosed)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, p.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	p.conn = conn

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go p.readLoop()
	go p.pingLoop()

	if len(p.topics) > 0 {
		topics := make([]string, 0, len(p.topics))
		for t := range p.topics {
			topics = append(topics, t)
		}
		if err := p.sendCommand(rtdsCommand{Action: "subscribe", Topics: topics}); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}
	return nil
}

// Subscribe adds market IDs to the subscription set. Markets already
// subscribed are skipped.
func (p *PriceStream) Subscribe(marketIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	var fresh []string
	for _, id := range marketIDs {
		t := "market." + id
		if _, ok := p.topics[t]; ok {
			continue
		}
		p.topics[t] = struct{}{}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := p.sendCommand(rtdsCommand{Action: "subscribe", Topics: fresh}); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (p *PriceStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	if p.conn != nil {
		_ = p.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return p.conn.Close()
	}
	return nil
}

// OnPrice registers a handler for price updates.
func (p *PriceStream) OnPrice(handler PriceHandler) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// sendCommand sends a JSON command to the WebSocket. Caller must hold p.mu.
func (p *PriceStream) sendCommand(cmd rtdsCommand) error {
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages until the connection drops, then reconnects.
func (p *PriceStream) readLoop() {
	for {
		select {
		case <-p.done:
			return
		default:
		}

		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
				return
			default:
			}
			conn.Close()
			p.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		if update, ok := ParsePriceMessage(message, p.now()); ok {
			p.handlerMu.RLock()
			handlers := p.handlers
			p.handlerMu.RUnlock()
			for _, h := range handlers {
				h(update)
			}
		}
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (p *PriceStream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.RLock()
			conn := p.conn
			p.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (p *PriceStream) reconnect() {
	delay := reconnectDelay
	for {
		select {
		case <-p.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := p.Connect(ctx)
		cancel()
		if err == nil || errors.Is(err, errStreamClosed) {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// ParsePriceMessage decodes an RTDS market frame into a price update. The
// market ID is the last dot-separated segment of the topic. ok is false for
// frames without a market or without prices.
func ParsePriceMessage(raw []byte, at time.Time) (domain.PriceUpdate, bool) {
	var msg rtdsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PriceUpdate{}, false
	}

	topic := msg.Topic
	if topic == "" {
		topic = msg.Channel
	}
	marketID := msg.MarketID
	if topic != "" {
		marketID = topic[strings.LastIndex(topic, ".")+1:]
	}

	field := msg.Data.OutcomePrices
	if len(field) == 0 || string(field) == "null" {
		field = msg.Data.Price
	}
	if marketID == "" || len(field) == 0 {
		return domain.PriceUpdate{}, false
	}

	var prices []float64
	var encoded string
	if err := json.Unmarshal(field, &encoded); err == nil {
		prices = decodePriceList(encoded)
	} else {
		var raw []flexFloat
		if err := json.Unmarshal(field, &raw); err != nil {
			return domain.PriceUpdate{}, false
		}
		for _, r := range raw {
			prices = append(prices, r.value)
		}
	}

	leading, ok := domain.RawMarket{OutcomePrices: prices}.LeadingPrice()
	if !ok {
		return domain.PriceUpdate{}, false
	}
	return domain.PriceUpdate{
		MarketID: marketID,
		Price:    leading,
		Closed:   msg.Data.Closed,
		At:       at,
	}, true
}
