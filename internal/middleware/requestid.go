package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
)

const (
	HeaderXRequestID   = "X-Request-ID"
	HeaderXCausationID = "X-Causation-ID"
	ContextRequestID   = "request_id"
)

// RequestID tags each request with an id, echoed back in X-Request-ID, and
// uses it as the correlation id of events appended while serving it. A caller
// reacting to an earlier event can name it in X-Causation-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)

		md := event.Metadata{event.MetaCorrelationID: rid}
		if cause := c.GetHeader(HeaderXCausationID); cause != "" {
			md[event.MetaCausationID] = cause
		}
		c.Request = c.Request.WithContext(event.WithMetadata(c.Request.Context(), md))
		c.Next()
	}
}
