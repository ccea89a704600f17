// Package ws streams emitted cues to websocket clients such as on-screen
// banners and companion displays.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	clientBuffer    = 32
)

// Hub maintains the set of active clients and broadcasts cues to them. It
// implements cue.Sink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu        sync.RWMutex
	closed    bool
	count     int
	closeOnce sync.Once
	upgrade   websocket.Upgrader
	logger    logger.Logger
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

// WithCheckOrigin overrides the upgrade origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrade.CheckOrigin = fn }
}

// NewHub returns a hub; call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}
	return h
}

// Run is the hub's main loop. It returns when ctx is done or Close is
// called, disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.count = len(h.clients)
			n := h.count
			h.mu.Unlock()
			h.logger.Debug(ctx, "client connected", logger.Int("clients", n))
		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			n := h.count
			h.mu.Unlock()
			h.logger.Debug(ctx, "client disconnected", logger.Int("clients", n))
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Too slow to keep up.
					h.remove(c)
					metrics.RecordSinkError("ws")
					h.logger.Warn(ctx, "dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.count = len(h.clients)
}

func (h *Hub) shutdown() {
	h.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.remove(c)
	}
}

// Close stops Run.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Emit broadcasts ev as JSON. It never waits for clients.
func (h *Hub) Emit(_ context.Context, ev cue.Event) error { //nolint:gocritic // hugeParam: cue.Sink contract
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode cue: %w", err)
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// ServeHTTP upgrades the request and streams cues until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	c.run()
}
