package sessions

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/middleware"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/videos"
	"github.com/vidswitch/backend/pkg/response"
)

// StartRequest is the body for POST /sessions/start.
type StartRequest struct {
	VideoID string `json:"video_id" binding:"required"`
}

// Store persists sessions. *Repository implements it.
type Store interface {
	Create(ctx context.Context, participantID uuid.UUID, videoID string, condition models.Condition) (*models.Session, error)
	Complete(ctx context.Context, id, participantID uuid.UUID) (*models.Session, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.SessionSummary, error)
	ListAll(ctx context.Context) ([]models.SessionSummary, error)
}

// ParticipantDirectory resolves the authenticated participant.
type ParticipantDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

// Catalog resolves video ids against the catalog.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
}

// Handler handles session HTTP endpoints.
type Handler struct {
	repo            Store
	participantRepo ParticipantDirectory
	videoRepo       Catalog
	logger          *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(repo Store, participantRepo ParticipantDirectory, videoRepo Catalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, participantRepo: participantRepo, videoRepo: videoRepo, logger: logger}
}

// Start handles POST /sessions/start. The session snapshots the
// participant's condition so later administrative changes never rewrite
// historical sessions.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "video_id is required")
		return
	}
	participantID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	p, err := h.participantRepo.GetByID(c.Request.Context(), participantID)
	if err != nil {
		response.Unauthorized(c, "participant not found")
		return
	}
	if _, err := h.videoRepo.GetByID(c.Request.Context(), req.VideoID); err != nil {
		if errors.Is(err, videos.ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		response.Internal(c, "failed to start session")
		return
	}

	s, err := h.repo.Create(c.Request.Context(), participantID, req.VideoID, p.Condition)
	if err != nil {
		h.logger.Error("start session failed", zap.Error(err), zap.String("participant", p.ParticipantID))
		response.Internal(c, "failed to start session")
		return
	}
	response.Created(c, gin.H{"session": s})
}

// Complete handles PUT /sessions/:id/complete. Ownership is verified on
// every call; completion happens at most once.
func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	participantID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	s, err := h.repo.Complete(c.Request.Context(), id, participantID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "session not found")
		case errors.Is(err, ErrAlreadyCompleted):
			response.Conflict(c, "session already completed")
		default:
			h.logger.Error("complete session failed", zap.Error(err), zap.String("session_id", id.String()))
			response.Internal(c, "failed to complete session")
		}
		return
	}
	response.OK(c, gin.H{"session": s})
}

// Mine handles GET /sessions/mine.
func (h *Handler) Mine(c *gin.Context) {
	participantID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByParticipant(c.Request.Context(), participantID)
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list, "count": len(list)})
}

// ListAll handles GET /sessions (researcher view).
func (h *Handler) ListAll(c *gin.Context) {
	list, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list, "count": len(list)})
}
