package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/auth"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
)

func newEngine(t *testing.T, jwt auth.JWTService, out *bytes.Buffer) (*gin.Engine, *event.Metadata) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: out, JSON: true})
	seen := &event.Metadata{}

	r := gin.New()
	r.Use(RequestID(), Logger(log), Recovery(log))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	protected := r.Group("", NewAuthMiddleware(jwt).Authenticate())
	protected.GET("/whoami", func(c *gin.Context) {
		*seen = event.MetadataFrom(c.Request.Context())
		c.String(http.StatusOK, c.GetString(ContextSubject))
	})
	return r, seen
}

func TestAuthenticate(t *testing.T) {
	jwt, err := auth.NewJWTService("0123456789abcdef0123", "eventstore")
	require.NoError(t, err)
	r, seen := newEngine(t, jwt, &bytes.Buffer{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.GenerateToken("ops@example.com", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderXRequestID, "req-42")
	req.Header.Set(HeaderXCausationID, "evt-7")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, event.Metadata{
		event.MetaCorrelationID: "req-42",
		event.MetaCausationID:   "evt-7",
		event.MetaActorID:       "ops@example.com",
	}, *seen)
}

func TestRecoveryLogsAndReturns500(t *testing.T) {
	jwt, err := auth.NewJWTService("0123456789abcdef0123", "")
	require.NoError(t, err)
	var out bytes.Buffer
	r, _ := newEngine(t, jwt, &out)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderXRequestID, "req-panic")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-panic", w.Header().Get(HeaderXRequestID))
	assert.Contains(t, out.String(), `"correlation_id":"req-panic"`)
	assert.Contains(t, out.String(), "Request panic recovered")
	assert.Contains(t, out.String(), "Server error")
}
