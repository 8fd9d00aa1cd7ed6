package exports

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/middleware"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/queue"
	"github.com/vidswitch/backend/pkg/response"
	"github.com/vidswitch/backend/pkg/storage"
)

// CreateRequest is the body for POST /exports.
type CreateRequest struct {
	Type string `json:"type" binding:"required"`
}

// Handler handles researcher export endpoints.
type Handler struct {
	repo      *Repository
	generator *Generator
	jobQueue  *queue.Queue
	s3        *storage.S3 // optional; async exports need it
	logger    *zap.Logger
}

// NewHandler creates an exports handler.
func NewHandler(repo *Repository, generator *Generator, jobQueue *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, generator: generator, jobQueue: jobQueue, s3: s3, logger: logger}
}

// Download handles GET /analytics/export?type=events|sessions|participants,
// the synchronous CSV export for small studies.
func (h *Handler) Download(c *gin.Context) {
	exportType := c.DefaultQuery("type", models.ExportTypeEvents)
	if !models.ValidExportType(exportType) {
		response.BadRequest(c, "invalid type; must be one of: events, sessions, participants")
		return
	}

	data, err := h.generator.CSV(c.Request.Context(), exportType)
	if err != nil {
		h.logger.Error("render export failed", zap.Error(err), zap.String("type", exportType))
		response.Internal(c, "failed to export data")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+exportType+"_export.csv")
	c.Data(http.StatusOK, "text/csv", data)
}

// Create handles POST /exports. Enqueues an asynchronous export rendered by
// the worker and stored in S3.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "type is required")
		return
	}
	if !models.ValidExportType(req.Type) {
		response.BadRequest(c, "invalid type; must be one of: events, sessions, participants")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "export storage not configured")
		return
	}
	researcherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	job, err := h.repo.Create(c.Request.Context(), req.Type, researcherID)
	if err != nil {
		h.logger.Error("create export job failed", zap.Error(err))
		response.Internal(c, "failed to create export job")
		return
	}
	if err := h.jobQueue.EnqueueExport(c.Request.Context(), queue.ExportPayload{JobID: job.ID, ExportType: job.ExportType}); err != nil {
		h.logger.Error("enqueue export job failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		_ = h.repo.MarkFailed(c.Request.Context(), job.ID, "enqueue failed")
		response.Internal(c, "failed to enqueue export job")
		return
	}
	response.Created(c, gin.H{"job": job})
}

// List handles GET /exports.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list export jobs")
		return
	}
	response.OK(c, gin.H{"jobs": list, "count": len(list)})
}

// Get handles GET /exports/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export job id")
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "export job not found")
			return
		}
		response.Internal(c, "failed to fetch export job")
		return
	}
	response.OK(c, gin.H{"job": job})
}

// DownloadURL handles GET /exports/:id/download-url (presigned S3 GET).
func (h *Handler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export job id")
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "export job not found")
			return
		}
		response.Internal(c, "failed to fetch export job")
		return
	}
	if job.Status != models.ExportStatusCompleted || job.S3Key == "" {
		response.BadRequest(c, "export not ready for download")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "export storage not configured")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), job.S3Key, expire)
	if err != nil {
		h.logger.Error("presign export download failed", zap.Error(err), zap.String("job_id", id.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}
