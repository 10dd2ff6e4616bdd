package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"takealot_sync/models"
	"takealot_sync/takealot"
)

const internalErrorMessage = "internal server error"

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what the caller sees for err. Server-side failures only
// expose the marketplace status line; everything else stays in the log.
func publicMessage(status int, err error) string {
	if status < http.StatusInternalServerError {
		return err.Error()
	}
	var upstream *takealot.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Error()
	}
	return internalErrorMessage
}

// errorResponse logs err with the request context and writes {error}.
func (s *Server) errorResponse(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("internal error", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	} else {
		s.log.Warnw("request rejected", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": publicMessage(status, err)})
}
