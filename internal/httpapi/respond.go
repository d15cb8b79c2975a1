package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"rollbook/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
}

// MessageResponse is returned by operations without a payload.
type MessageResponse struct {
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

// fail maps err to its status and writes the error body. Internal errors are
// logged and hidden from the caller.
func fail(c *gin.Context, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUpstream || kind == apperr.KindUnavailable {
		log.ErrorContext(c.Request.Context(), "request failed",
			"request_id", c.GetString("request_id"),
			"path", c.FullPath(),
			"kind", string(kind),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(apperr.Status(kind), ErrorResponse{Error: apperr.Message(err), Kind: kind})
}
