package stream

import (
	"context"

	"github.com/gin-gonic/gin"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/eventstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/httputil"
)

type Reader interface {
	ReadStreamFrom(ctx context.Context, aggregateID string, fromVersion int) ([]eventstore.Envelope, error)
}

type Handler struct {
	store Reader
}

func NewHandler(store Reader) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/streams/:aggregate_id", h.ReadStream)
}

type readQuery struct {
	From int `form:"from" binding:"min=0"`
}

// ReadStream returns the aggregate's events after ?from= (default 0), decoded
// and upcast to their current schema.
func (h *Handler) ReadStream(c *gin.Context) {
	var q readQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("from must be a non-negative integer", err))
		return
	}

	envelopes, err := h.store.ReadStreamFrom(c.Request.Context(), c.Param("aggregate_id"), q.From)
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"aggregate_id": c.Param("aggregate_id"),
		"events":       envelopes,
	})
}
