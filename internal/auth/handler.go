package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/response"
	"github.com/vidswitch/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register. SetupKey must match
// the configured RESEARCHER_SETUP_KEY.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	SetupKey string `json:"setup_key" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token      string                  `json:"token"`
	Researcher models.ResearcherPublic `json:"researcher"`
}

// Store persists researcher accounts. *Repository implements it.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.Researcher, error)
	Create(ctx context.Context, email, passwordHash, fullName string) (*models.Researcher, error)
}

// Handler handles researcher auth HTTP endpoints.
type Handler struct {
	repo     Store
	jwt      *JWTService
	setupKey string
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo Store, jwt *JWTService, setupKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, setupKey: setupKey, logger: logger}
}

// Register handles POST /auth/register (researcher accounts, setup-key gated).
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.setupKey == "" || req.SetupKey != h.setupKey {
		response.Forbidden(c, "invalid setup key")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	res, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.FullName)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create researcher failed", zap.Error(err))
		response.Internal(c, "failed to create researcher")
		return
	}

	token, err := h.jwt.Generate(res.ID, res.Email, models.RoleResearcher)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, Researcher: res.ToPublic()})
}

// Login handles POST /auth/login (researcher email + password).
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !utils.CheckPassword(req.Password, res.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(res.ID, res.Email, models.RoleResearcher)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Researcher: res.ToPublic()})
}
