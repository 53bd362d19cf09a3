package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"BullionWatch/internal/metrics"
	"BullionWatch/internal/model"
)

// Client is one connected dashboard.
type Client interface {
	ID() string
	// SendBytes queues a frame without blocking. It reports false when the
	// frame was dropped.
	SendBytes(b []byte) bool
	Close()
}

// SnapshotSource provides the current snapshot for late joiners.
type SnapshotSource interface {
	Load() *model.Snapshot
}

// Updater starts a manual run; false means one is already in flight.
type Updater interface {
	RequestUpdate() bool
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}

	current SnapshotSource
	updater Updater
	logger  *zap.Logger
}

// NewHub creates a Hub reading late-joiner state from current.
func NewHub(current SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[Client]struct{}),
		current: current,
		logger:  logger,
	}
}

// SetUpdater wires manual update requests to the scheduler.
func (h *Hub) SetUpdater(u Updater) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updater = u
}

// Register adds a client and sends it the current snapshot, or a waiting
// status before the first run completes.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.Clients.Inc()
	h.logger.Info("client connected", zap.String("client", c.ID()), zap.Int("clients", n))

	if snap := h.current.Load(); snap != nil {
		h.send(c, EventMarketUpdate, snap)
		return
	}
	h.send(c, EventStatus, Notice{Message: StatusWaiting})
}

// Unregister removes a client and closes it. Unknown clients are ignored.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.Clients.Dec()
	c.Close()
	h.logger.Info("client disconnected", zap.String("client", c.ID()), zap.Int("clients", n))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleMessage processes one inbound frame from c.
func (h *Hub) HandleMessage(c Client, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.send(c, EventError, Notice{Message: "Invalid message"})
		return
	}
	switch msg.Event {
	case EventRequestUpdate:
		h.mu.RLock()
		u := h.updater
		h.mu.RUnlock()
		switch {
		case u == nil:
			h.send(c, EventStatus, Notice{Message: StatusDisabled})
		case u.RequestUpdate():
			h.send(c, EventStatus, Notice{Message: StatusUpdating})
		default:
			h.send(c, EventStatus, Notice{Message: StatusInProgress})
		}
	default:
		h.send(c, EventError, Notice{Message: "Unknown event: " + msg.Event})
	}
}

// Broadcast encodes the event once and queues it for every client. A slow
// client loses the frame; nobody waits for it.
func (h *Hub) Broadcast(event string, data any) {
	b, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("encode broadcast failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.SendBytes(b) {
			h.logger.Debug("dropped frame for slow client", zap.String("client", c.ID()), zap.String("event", event))
		}
	}
	metrics.Broadcasts.WithLabelValues(event).Inc()
}

// PublishSnapshot broadcasts a market_update.
func (h *Hub) PublishSnapshot(s *model.Snapshot) { h.Broadcast(EventMarketUpdate, s) }

// PublishError broadcasts a pipeline failure.
func (h *Hub) PublishError(message string) { h.Broadcast(EventError, Notice{Message: message}) }

func (h *Hub) send(c Client, event string, data any) {
	b, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("encode message failed", zap.String("event", event), zap.Error(err))
		return
	}
	c.SendBytes(b)
}
