package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/auth"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/httputil"
)

const ContextSubject = "subject"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token. The token subject becomes the actor
// of any event appended while serving the request.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.NewUnauthorized(apperrors.New("missing authorization header")))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondWithError(c, apperrors.NewUnauthorized(apperrors.New("invalid authorization format")))
			c.Abort()
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewUnauthorized(err))
			c.Abort()
			return
		}

		c.Set(ContextSubject, claims.Subject)
		ctx := event.WithMetadata(c.Request.Context(), event.Metadata{event.MetaActorID: claims.Subject})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
