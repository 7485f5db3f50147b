package outbox

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/httputil"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/worker"
)

const (
	statsKey     = "outbox_stats"
	statsTTL     = 5 * time.Second
	defaultLimit = 50
)

type Processor interface {
	ProcessBatch(ctx context.Context, limit int) (worker.BatchResult, error)
}

type Handler struct {
	repo      repository.OutboxRepository
	processor Processor
	cache     *cache.Cache
}

func NewHandler(repo repository.OutboxRepository, processor Processor) *Handler {
	return &Handler{
		repo:      repo,
		processor: processor,
		cache:     cache.New(statsTTL, time.Minute),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/outbox", h.List)
	r.GET("/outbox/stats", h.Stats)
}

// RegisterProtectedRoutes mounts the routes that change state.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/outbox/process", h.Process)
}

type listQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("limit must be between 1 and 500", err))
		return
	}

	status := model.OutboxStatusPending
	if q.Status != "" {
		parsed, err := model.ParseOutboxStatus(q.Status)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
			return
		}
		status = parsed
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}

	records, err := h.repo.ListByStatus(c.Request.Context(), status, q.Limit)
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, records)
}

// Stats serves counts per status, cached briefly since dashboards poll it.
func (h *Handler) Stats(c *gin.Context) {
	if cached, ok := h.cache.Get(statsKey); ok {
		httputil.RespondWithSuccess(c, cached)
		return
	}

	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}
	h.cache.Set(statsKey, counts, cache.DefaultExpiration)
	httputil.RespondWithSuccess(c, counts)
}

type processQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Process runs one batch synchronously. A zero limit uses the configured batch size.
func (h *Handler) Process(c *gin.Context) {
	var q processQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("limit must be between 1 and 1000", err))
		return
	}

	result, err := h.processor.ProcessBatch(c.Request.Context(), q.Limit)
	h.cache.Delete(statsKey)
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}
