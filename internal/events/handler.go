package events

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/middleware"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/response"
)

// IncomingEvent is one event in a track or track-batch request. Timestamps
// are the client-side creation moment; batching never distorts them.
type IncomingEvent struct {
	SessionID        uuid.UUID  `json:"session_id" binding:"required"`
	EventType        string     `json:"event_type" binding:"required"`
	Duration         *float64   `json:"duration,omitempty"`
	FromVideoID      *string    `json:"from_video_id,omitempty"`
	ToVideoID        *string    `json:"to_video_id,omitempty"`
	PlaybackPosition *float64   `json:"playback_position,omitempty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
}

// BatchRequest is the body for POST /events/track-batch.
type BatchRequest struct {
	Events []IncomingEvent `json:"events" binding:"required"`
}

// FeedPublisher pushes ingested event summaries to the researcher live feed.
type FeedPublisher interface {
	PublishEvent(participantLabel string, e models.Event)
}

// Store persists events. *Repository implements it.
type Store interface {
	CountOwnedSessions(ctx context.Context, sessionIDs []uuid.UUID, participantID uuid.UUID) (int, error)
	InsertBatch(ctx context.Context, batch []NewEvent) ([]models.Event, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Event, error)
	ListAll(ctx context.Context, f Filter) ([]models.EventRow, error)
}

// SessionDirectory verifies session ownership.
type SessionDirectory interface {
	GetOwned(ctx context.Context, id, participantID uuid.UUID) (*models.Session, error)
}

// ParticipantDirectory resolves participant labels for the researcher feed query.
type ParticipantDirectory interface {
	GetByParticipantID(ctx context.Context, participantID string) (*models.Participant, error)
}

// Handler handles event ingestion and queries.
type Handler struct {
	repo        Store
	sessionRepo SessionDirectory
	partRepo    ParticipantDirectory
	feed        FeedPublisher // optional
	logger      *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo Store, sessionRepo SessionDirectory, partRepo ParticipantDirectory, feed FeedPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, sessionRepo: sessionRepo, partRepo: partRepo, feed: feed, logger: logger}
}

// Track handles POST /events/track (single event).
func (h *Handler) Track(c *gin.Context) {
	var req IncomingEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "session_id and event_type are required")
		return
	}
	h.ingest(c, []IncomingEvent{req})
}

// TrackBatch handles POST /events/track-batch. The batch is atomic: if any
// event references a session the caller does not own, nothing is persisted.
func (h *Handler) TrackBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Events) == 0 {
		response.BadRequest(c, "events array is required and must not be empty")
		return
	}
	h.ingest(c, req.Events)
}

func (h *Handler) ingest(c *gin.Context, incoming []IncomingEvent) {
	participantID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	participantLabel, _ := c.MustGet(middleware.ContextUserLabel).(string)

	batch := make([]NewEvent, 0, len(incoming))
	seen := make(map[uuid.UUID]bool)
	var sessionIDs []uuid.UUID
	for _, ev := range incoming {
		kind := models.EventType(ev.EventType)
		if !models.ValidEventType(kind) {
			response.BadRequest(c, "unknown event_type: "+ev.EventType)
			return
		}
		if !seen[ev.SessionID] {
			seen[ev.SessionID] = true
			sessionIDs = append(sessionIDs, ev.SessionID)
		}
		ne := NewEvent{
			SessionID:        ev.SessionID,
			EventType:        kind,
			Duration:         ev.Duration,
			FromVideoID:      ev.FromVideoID,
			ToVideoID:        ev.ToVideoID,
			PlaybackPosition: ev.PlaybackPosition,
		}
		if ev.Timestamp != nil {
			ne.OccurredAt = *ev.Timestamp
		}
		batch = append(batch, ne)
	}

	owned, err := h.repo.CountOwnedSessions(c.Request.Context(), sessionIDs, participantID)
	if err != nil {
		h.logger.Error("ownership check failed", zap.Error(err))
		response.Internal(c, "failed to track events")
		return
	}
	if owned != len(sessionIDs) {
		h.logger.Warn("batch rejected: session ownership mismatch",
			zap.String("participant", participantLabel),
			zap.Int("sessions", len(sessionIDs)),
			zap.Int("owned", owned),
		)
		response.NotFound(c, "one or more sessions not found or do not belong to participant")
		return
	}

	created, err := h.repo.InsertBatch(c.Request.Context(), batch)
	if err != nil {
		h.logger.Error("insert batch failed", zap.Error(err), zap.Int("events", len(batch)))
		response.Internal(c, "failed to track events")
		return
	}

	if h.feed != nil {
		for _, e := range created {
			h.feed.PublishEvent(participantLabel, e)
		}
	}

	response.Created(c, gin.H{"count": len(created)})
}

// SessionEvents handles GET /events/session/:id (owner only).
func (h *Handler) SessionEvents(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	participantID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if _, err := h.sessionRepo.GetOwned(c.Request.Context(), sessionID, participantID); err != nil {
		response.NotFound(c, "session not found")
		return
	}

	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to fetch events")
		return
	}
	response.OK(c, gin.H{"events": list, "count": len(list)})
}

// ListAll handles GET /events (researcher view; filters: participant_id,
// event_type, from, to as RFC 3339 timestamps).
func (h *Handler) ListAll(c *gin.Context) {
	var f Filter

	if label := c.Query("participant_id"); label != "" {
		p, err := h.partRepo.GetByParticipantID(c.Request.Context(), label)
		if err != nil {
			response.OK(c, gin.H{"events": []models.EventRow{}, "count": 0})
			return
		}
		f.ParticipantDBID = &p.ID
	}
	if t := c.Query("event_type"); t != "" {
		f.EventType = models.EventType(t)
	}
	if from := c.Query("from"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			response.BadRequest(c, "invalid from timestamp")
			return
		}
		f.From = &ts
	}
	if to := c.Query("to"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			response.BadRequest(c, "invalid to timestamp")
			return
		}
		f.To = &ts
	}

	list, err := h.repo.ListAll(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to fetch events")
		return
	}
	response.OK(c, gin.H{"events": list, "count": len(list)})
}
