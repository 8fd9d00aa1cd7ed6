package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/participants"
	"github.com/vidswitch/backend/pkg/response"
)

const statsCacheKey = "analytics:stats"

// Handler handles researcher analytics endpoints.
type Handler struct {
	repo     *Repository
	partRepo *participants.Repository
	cache    *redis.Client // optional
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewHandler creates an analytics handler. cache may be nil to disable the
// overview-stats cache.
func NewHandler(repo *Repository, partRepo *participants.Repository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, partRepo: partRepo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// GetStats handles GET /analytics/stats.
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	if cached := h.cachedStats(ctx); cached != nil {
		response.OK(c, cached)
		return
	}

	stats, err := h.repo.Stats(ctx)
	if err != nil {
		h.logger.Error("compute stats failed", zap.Error(err))
		response.Internal(c, "failed to fetch statistics")
		return
	}
	h.storeStats(ctx, stats)
	response.OK(c, stats)
}

// GetParticipantStats handles GET /analytics/participants/:participantId.
func (h *Handler) GetParticipantStats(c *gin.Context) {
	label := c.Param("participantId")
	p, err := h.partRepo.GetByParticipantID(c.Request.Context(), label)
	if err != nil {
		if errors.Is(err, participants.ErrNotFound) {
			response.NotFound(c, "participant not found")
			return
		}
		response.Internal(c, "failed to fetch participant statistics")
		return
	}

	stats, err := h.repo.ParticipantStats(c.Request.Context(), p)
	if err != nil {
		h.logger.Error("compute participant stats failed", zap.Error(err), zap.String("participant", label))
		response.Internal(c, "failed to fetch participant statistics")
		return
	}
	response.OK(c, stats)
}

func (h *Handler) cachedStats(ctx context.Context) *Stats {
	if h.cache == nil || h.cacheTTL <= 0 {
		return nil
	}
	raw, err := h.cache.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil
	}
	return &stats
}

func (h *Handler) storeStats(ctx context.Context, stats *Stats) {
	if h.cache == nil || h.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, statsCacheKey, raw, h.cacheTTL).Err(); err != nil {
		h.logger.Debug("stats cache write failed", zap.Error(err))
	}
}
