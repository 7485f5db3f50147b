package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/middleware"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/httputil"
)

type Service interface {
	Register(ctx context.Context, email, fullName, locale string) (*domain.User, error)
	Approve(ctx context.Context, userID, approvedBy string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("", h.CreateUser)
		users.GET("/:id", h.GetUser)
	}
}

// RegisterProtectedRoutes mounts routes that need an authenticated operator.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/users/:id/approve", h.ApproveUser)
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required,max=255"`
	Locale   string `json:"locale" binding:"omitempty,bcp47_language_tag"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Locale     string `json:"locale"`
	Status     string `json:"status"`
	ApprovedBy string `json:"approved_by,omitempty"`
	Version    int    `json:"version"`
}

func toResponse(u *domain.User) userResponse {
	return userResponse{
		ID:         u.AggregateID(),
		Email:      u.Email(),
		FullName:   u.FullName(),
		Locale:     u.Locale(),
		Status:     string(u.Status()),
		ApprovedBy: u.ApprovedBy(),
		Version:    u.Version(),
	}
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid user payload", err))
		return
	}

	u, err := h.service.Register(c.Request.Context(), req.Email, req.FullName, req.Locale)
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, toResponse(u))
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, toResponse(u))
}

// ApproveUser records the authenticated operator as the approver.
func (h *Handler) ApproveUser(c *gin.Context) {
	u, err := h.service.Approve(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextSubject))
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, toResponse(u))
}
