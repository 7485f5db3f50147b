package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response. Internal failures are not echoed
// back to the client.
func RespondWithError(c *gin.Context, err error) {
	statusCode := StatusFor(err)
	message := err.Error()

	var appErr *errors.AppError
	switch {
	case statusCode == http.StatusInternalServerError:
		message = "Internal server error"
	case errors.As(err, &appErr):
		message = appErr.Message
	}

	c.JSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}

// StatusFor maps application and event store errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrUnknownEventName), errors.Is(err, errors.ErrMissingField):
		return http.StatusUnprocessableEntity
	}

	code, ok := errors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
