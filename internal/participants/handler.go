package participants

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/auth"
	"github.com/vidswitch/backend/internal/middleware"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/response"
)

// CreateRequest is the body for POST /participants (researcher only).
type CreateRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	Condition     string `json:"condition" binding:"required"`
}

// LoginRequest is the body for POST /participants/login.
type LoginRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// Store persists participants. *Repository implements it.
type Store interface {
	Create(ctx context.Context, participantID string, condition models.Condition) (*models.Participant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetByParticipantID(ctx context.Context, participantID string) (*models.Participant, error)
	List(ctx context.Context) ([]models.ParticipantSummary, error)
}

// Handler handles participant HTTP endpoints.
type Handler struct {
	repo   Store
	jwt    *auth.JWTService
	logger *zap.Logger
}

// NewHandler creates a participants handler.
func NewHandler(repo Store, jwt *auth.JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Create handles POST /participants (researcher creates a participant with a fixed condition).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "participant_id and condition are required")
		return
	}
	condition := models.Condition(req.Condition)
	if !models.ValidCondition(condition) {
		response.BadRequest(c, "unknown condition: "+req.Condition)
		return
	}

	p, err := h.repo.Create(c.Request.Context(), req.ParticipantID, condition)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			response.Conflict(c, "participant id already exists")
			return
		}
		h.logger.Error("create participant failed", zap.Error(err), zap.String("participant_id", req.ParticipantID))
		response.Internal(c, "failed to create participant")
		return
	}
	response.Created(c, gin.H{"participant": p})
}

// Login handles POST /participants/login. Participants authenticate with
// their assigned id alone; identity issuance is the researcher's job.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "participant_id is required")
		return
	}

	p, err := h.repo.GetByParticipantID(c.Request.Context(), req.ParticipantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "participant id not found; check with your researcher")
			return
		}
		response.Internal(c, "login failed")
		return
	}

	token, err := h.jwt.Generate(p.ID, p.ParticipantID, models.RoleParticipant)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, gin.H{"token": token, "participant": p})
}

// Me handles GET /participants/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.NotFound(c, "participant not found")
		return
	}
	response.OK(c, gin.H{"participant": p})
}

// List handles GET /participants (researcher listing with session counts).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list participants failed", zap.Error(err))
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, gin.H{"participants": list, "count": len(list)})
}
