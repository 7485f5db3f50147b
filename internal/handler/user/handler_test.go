package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/middleware"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

type fakeService struct {
	approvedBy string
	approveErr error
}

func (f *fakeService) Register(_ context.Context, email, fullName, locale string) (*domain.User, error) {
	return domain.Register(email, fullName, locale)
}

func (f *fakeService) Approve(_ context.Context, userID, approvedBy string) (*domain.User, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approvedBy = approvedBy
	u, err := domain.Register("ada@example.com", "Ada", "en")
	if err != nil {
		return nil, err
	}
	return u, u.Approve(approvedBy)
}

func (f *fakeService) Get(_ context.Context, userID string) (*domain.User, error) {
	return nil, apperrors.NewNotFound("aggregate "+userID, nil)
}

func newRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	protected := api.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextSubject, "ops@example.com")
	})
	h.RegisterProtectedRoutes(protected)
	return r
}

func TestCreateUser(t *testing.T) {
	r := newRouter(&fakeService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users",
		strings.NewReader(`{"email":"ada@example.com","full_name":"Ada","locale":"fr"}`)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	assert.Contains(t, w.Body.String(), `"locale":"fr"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"email":"nope"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveUserUsesSubject(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/u-1/approve", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", svc.approvedBy)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)
}

func TestApproveConflictMapsTo409(t *testing.T) {
	r := newRouter(&fakeService{approveErr: apperrors.NewConcurrencyConflict("u-1", 1, 2)})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/u-1/approve", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetUserNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&fakeService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
