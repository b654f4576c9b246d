// Package ws relays engine events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// allEvents is the bus pattern the hub listens on and the default client
// subscription.
const allEvents = "ch:*"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS allow list in front of the hub.
		return true
	},
}

// Frame formats.
const (
	formatJSON  = "json"
	formatProto = "proto"
)

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan frame
	format string
	subs   map[string]bool
	mu     sync.RWMutex
}

// frame is one outgoing message in both encodings.
type frame struct {
	text   []byte
	binary []byte
}

// subscribeMsg is what clients send to change their channel set:
// {"action":"subscribe","channels":["ch:market_resolved"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// Hub fans bus events out to connected clients by channel.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.EventBus
	clock      domain.Clock
	mu         sync.RWMutex
	logger     *slog.Logger
	startedAt  time.Time
}

type broadcastMsg struct {
	channel string
	frame   frame
}

// NewHub creates a Hub reading from bus. clock may be nil.
func NewHub(bus domain.EventBus, clock domain.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		clock:      clock,
		logger:     logger.With(slog.String("component", "ws_hub")),
		startedAt:  time.Now().UTC(),
	}
}

// Run subscribes to the bus and serves registrations until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	msgCh, err := h.bus.Subscribe(ctx, allEvents)
	if err != nil {
		return err
	}
	go h.pump(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.isSubscribed(msg.channel) {
					continue
				}
				select {
				case c.send <- msg.frame:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// pump decodes bus payloads and queues them for broadcast.
func (h *Hub) pump(ctx context.Context, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: event subscription closed")
				return
			}
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				h.logger.Warn("ws: undecodable event", slog.String("error", err.Error()))
				continue
			}
			f, err := encodeFrame(data)
			if err != nil {
				h.logger.Warn("ws: encode frame failed", slog.String("error", err.Error()))
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{channel: ev.Type.Channel(), frame: f}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// encodeFrame keeps the JSON event as the text frame and converts it to a
// google.protobuf.Struct for binary clients.
func encodeFrame(eventJSON []byte) (frame, error) {
	var m map[string]any
	if err := json.Unmarshal(eventJSON, &m); err != nil {
		return frame{}, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return frame{}, err
	}
	bin, err := proto.Marshal(st)
	if err != nil {
		return frame{}, err
	}
	return frame{text: eventJSON, binary: bin}, nil
}

// HandleWS upgrades the request. ?format=proto selects binary protobuf
// frames; ?channels=a,b narrows the initial subscription.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan frame, sendBufferSize),
		format: formatJSON,
		subs:   make(map[string]bool),
	}
	if r.URL.Query().Get("format") == formatProto {
		c.format = formatProto
	}
	if chs := r.URL.Query().Get("channels"); chs != "" {
		for _, ch := range strings.Split(chs, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				c.subs[ch] = true
			}
		}
	} else {
		c.subs[allEvents] = true
	}

	c.sendHello(r.Context())
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range msg.Channels {
		switch msg.Action {
		case "subscribe":
			c.subs[ch] = true
		case "unsubscribe":
			delete(c.subs, ch)
		}
	}
}

// sendHello tells the client the connection is live and where the logical
// clock stands.
func (c *client) sendHello(ctx context.Context) {
	payload := map[string]any{
		"uptime_seconds": int64(time.Since(c.hub.startedAt).Seconds()),
	}
	if c.hub.clock != nil {
		if now, err := c.hub.clock.Now(ctx); err == nil {
			payload["clock"] = now
		}
	}
	msg, err := json.Marshal(map[string]any{"type": "hello", "payload": payload})
	if err != nil {
		return
	}
	f, err := encodeFrame(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- f:
	default:
	}
}

// isSubscribed matches exact channels and trailing-* patterns.
func (c *client) isSubscribed(channel string) bool {
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var err error
			if c.format == formatProto {
				err = c.conn.WriteMessage(websocket.BinaryMessage, f.binary)
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, f.text)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
