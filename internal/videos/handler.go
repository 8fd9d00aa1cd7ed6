package videos

import (
	"github.com/gin-gonic/gin"

	"github.com/vidswitch/backend/pkg/response"
)

// Handler handles GET /videos.
type Handler struct {
	repo *Repository
}

// NewHandler creates a videos handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /videos (the catalog shown to participants).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, gin.H{"videos": list, "count": len(list)})
}
