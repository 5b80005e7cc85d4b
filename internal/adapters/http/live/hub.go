// Package live pushes leaderboard updates to websocket subscribers.
package live

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/dugout/pkg/logger"
	"github.com/okian/dugout/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 1024

	sendBuffer = 8
)

// sameOrigin accepts requests without an Origin header and those whose
// origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

type client struct {
	hub   *Hub
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans out messages to the subscribers of a topic. Topics are challenge
// ids or the global leaderboard.
type Hub struct {
	mu       sync.Mutex
	topics   map[string]map[*client]struct{}
	count    int
	closed   bool
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin replaces the same-origin check.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(h *Hub) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		topics: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("live")
	}
	return h
}

// Serve upgrades the request and subscribes the connection to topic. When
// initial is not nil it is sent before any published update.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string, initial []byte) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		return err
	}
	c := &client{hub: h, topic: topic, conn: conn, send: make(chan []byte, sendBuffer)}
	if initial != nil {
		c.send <- initial
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return conn.Close()
	}
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs, ok := h.topics[c.topic]
	if !ok {
		subs = make(map[*client]struct{})
		h.topics[c.topic] = subs
	}
	subs[c] = struct{}{}
	h.count++
	metrics.UpdateLiveConnections(h.count)
	return true
}

// unregisterLocked removes c and closes its send channel. Must be called
// with mu held.
func (h *Hub) unregisterLocked(c *client) {
	subs, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.topics, c.topic)
	}
	close(c.send)
	h.count--
	metrics.UpdateLiveConnections(h.count)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

// Publish sends payload to every subscriber of topic. Subscribers whose
// buffer is full are disconnected.
func (h *Hub) Publish(ctx context.Context, topic string, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.topics[topic] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.logger.Warn(ctx, "dropping slow subscriber", logger.String("topic", topic))
			h.unregisterLocked(c)
		}
	}
	return delivered
}

// Subscribers returns the number of connections on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Count returns the number of connections across all topics.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.topics {
		for c := range subs {
			h.unregisterLocked(c)
		}
	}
	return nil
}

// readPump discards client frames and keeps the read deadline fresh so
// pongs are observed. It unregisters the client when the peer goes away.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
