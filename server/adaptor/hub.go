package adaptor

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/ponyo877/lounge/server/domain"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type client struct {
	id   domain.ConnectionID
	conn *websocket.Conn
	send chan []byte
}

// Hub holds the send queue of every live connection and implements
// usecase.Transport. Sends never block: a full queue drops the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ConnectionID]*client
	dropped atomic.Uint64
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[domain.ConnectionID]*client),
		logger:  logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// unregister removes the client and closes its send queue, which stops the
// writer.
func (h *Hub) unregister(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) enqueue(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.dropped.Add(1)
		h.logger.Warn("send queue full, dropping frame", zap.String("conn", string(c.id)))
	}
}

func (h *Hub) encode(event domain.Event) ([]byte, bool) {
	payload, err := EncodeEvent(event)
	if err != nil {
		h.logger.Error("encode event", zap.Error(err))
		return nil, false
	}
	return payload, true
}

func (h *Hub) Send(conn domain.ConnectionID, event domain.Event) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[conn]; ok {
		h.enqueue(c, payload)
	}
}

func (h *Hub) SendMany(conns []domain.ConnectionID, event domain.Event) {
	if len(conns) == 0 {
		return
	}
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range conns {
		if c, ok := h.clients[id]; ok {
			h.enqueue(c, payload)
		}
	}
}

func (h *Hub) Broadcast(event domain.Event, except ...domain.ConnectionID) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if lo.Contains(except, id) {
			continue
		}
		h.enqueue(c, payload)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// CloseAll sends a close frame to every connection. Read loops then exit
// and run the usual disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range h.clients {
		if c.conn == nil {
			continue
		}
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline(closeGracePeriod))
		_ = c.conn.Close()
	}
}
