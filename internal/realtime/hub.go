package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// FeedEvent is the payload pushed to researcher dashboards when a
// participant event arrives.
type FeedEvent struct {
	ParticipantID    string    `json:"participant_id"`
	SessionID        string    `json:"session_id"`
	EventType        string    `json:"event_type"`
	FromVideoID      *string   `json:"from_video_id,omitempty"`
	ToVideoID        *string   `json:"to_video_id,omitempty"`
	PlaybackPosition *float64  `json:"playback_position,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Hub maintains the set of connected researcher dashboards and broadcasts
// feed events to them. Uses Redis pub/sub for horizontal scaling: each
// instance publishes to Redis and the subscriber callback performs the
// local broadcast, so delivery happens once per instance.
type Hub struct {
	clients   map[string]*Client
	mu        sync.RWMutex
	logger    *zap.Logger
	redisPub  FeedPublisherBackend
	cancelSub func()
}

// FeedPublisherBackend publishes feed events to Redis for cross-instance delivery.
type FeedPublisherBackend interface {
	PublishFeed(payload []byte) error
}

// FeedSubscriberBackend subscribes to the feed channel and invokes handler for incoming events.
type FeedSubscriberBackend interface {
	SubscribeFeed(handler func(payload []byte)) (cancel func(), err error)
}

// NewHub creates a WebSocket hub for the researcher live feed. When a Redis
// backend is supplied the hub subscribes immediately so remote-instance
// events reach local clients.
func NewHub(logger *zap.Logger, pub FeedPublisherBackend, sub FeedSubscriberBackend) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:  make(map[string]*Client),
		logger:   logger,
		redisPub: pub,
	}
	if sub != nil {
		cancel, err := sub.SubscribeFeed(func(payload []byte) {
			h.broadcastLocal(payload)
		})
		if err != nil {
			logger.Warn("feed subscription failed, falling back to local-only broadcast", zap.Error(err))
		} else {
			h.cancelSub = cancel
		}
	}
	return h
}

// Register adds a researcher connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("researcher joined feed", zap.String("client_id", c.ID), zap.Int("connected", n))
}

// Unregister removes a researcher connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("researcher left feed", zap.String("client_id", c.ID), zap.Int("connected", n))
}

// Connected returns the number of connected dashboards.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishEvent pushes a participant event to the live feed. With Redis the
// event is published only; the subscriber callback broadcasts once for all
// instances including this one. Without Redis it broadcasts locally.
func (h *Hub) PublishEvent(participantLabel string, e models.Event) {
	fe := FeedEvent{
		ParticipantID: participantLabel,
		SessionID:     e.SessionID.String(),
		EventType:     string(e.EventType),
		OccurredAt:    e.OccurredAt,
	}
	fe.FromVideoID = e.FromVideoID
	fe.ToVideoID = e.ToVideoID
	fe.PlaybackPosition = e.PlaybackPosition

	data, err := json.Marshal(fe)
	if err != nil {
		return
	}
	if h.redisPub != nil && h.cancelSub != nil {
		if err := h.redisPub.PublishFeed(data); err == nil {
			return
		}
		h.logger.Warn("feed publish to redis failed, broadcasting locally")
	}
	h.broadcastLocal(data)
}

func (h *Hub) broadcastLocal(payload []byte) {
	msg := WSMessage{Event: "study_event", Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Close stops the Redis subscription and disconnects all clients.
func (h *Hub) Close() {
	if h.cancelSub != nil {
		h.cancelSub()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}
