package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamhaus/play-history-service/internal/service"
)

// respondError translates the core's typed errors into status codes.
// Everything untyped is a server-side failure and stays opaque to clients.
func respondError(c *gin.Context, err error) {
	var ve *service.ValidationError
	var ce *service.ConflictError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{"error": ce.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
