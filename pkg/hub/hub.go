package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-technocrane/internal/log"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
)

const queueSize = 256

// Hub maintains the set of subscribers of one stream.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	count   int
	running atomic.Bool
	dropped atomic.Uint64

	// last is replayed to new subscribers so they start with a snapshot.
	lastMu sync.RWMutex
	last   *Frame
}

// New creates a hub. name tags its log lines.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component("hub").With("stream", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Frame, queueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Name returns the stream name.
func (h *Hub) Name() string {
	return h.name
}

// Run owns the client set until ctx is done, then closes every client
// queue. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			if f, ok := h.snapshot(); ok {
				c.send <- f
			}
			h.logger.Debug("client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Debug("client disconnected", "clients", len(h.clients))
			}

		case f := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- f:
				default:
					h.drop(c)
					h.logger.Warn("dropped slow client")
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

func (h *Hub) snapshot() (Frame, bool) {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	if h.last == nil {
		return Frame{}, false
	}
	return *h.last, true
}

// Broadcast queues f for every client. A full queue drops the frame.
func (h *Hub) Broadcast(f Frame) {
	h.lastMu.Lock()
	h.last = &f
	h.lastMu.Unlock()

	select {
	case h.broadcast <- f:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast queue full, dropping frame", "type", f.Type)
	}
}

// Publish encodes and broadcasts msg.
func (h *Hub) Publish(msg *protocol.Message) error {
	f, err := Encode(msg)
	if err != nil {
		return err
	}
	h.Broadcast(f)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns how many frames were dropped on a full queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
