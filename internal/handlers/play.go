package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamhaus/play-history-service/internal/metrics"
	"github.com/streamhaus/play-history-service/internal/models"
	"github.com/streamhaus/play-history-service/internal/service"
)

// RegisterPlayRoutes registers the ingestion-path endpoint.
//
// POST /play
// - Requires X-Idempotency-Key (UUID v4)
// - Durable: returns success only after the DB write completes
// - Replaying a token returns the original response unchanged (201 again)
// - The same semantic event under a new token is a 409 Conflict
func RegisterPlayRoutes(r gin.IRoutes, svc *service.PlayEvents) {
	r.POST("/play", RequireIdempotencyKey(), func(c *gin.Context) {
		var req models.CreatePlayEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.PlayEventsIngested.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		resp, replayed, err := svc.Submit(c.Request.Context(), req, IdempotencyKey(c))
		if err != nil {
			var ve *service.ValidationError
			var ce *service.ConflictError
			switch {
			case errors.As(err, &ce):
				metrics.PlayEventsIngested.WithLabelValues("conflict").Inc()
			case errors.As(err, &ve):
				metrics.PlayEventsIngested.WithLabelValues("rejected").Inc()
			default:
				metrics.PlayEventsIngested.WithLabelValues("error").Inc()
			}
			respondError(c, err)
			return
		}

		if replayed {
			metrics.PlayEventsIngested.WithLabelValues("replayed").Inc()
		} else {
			metrics.PlayEventsIngested.WithLabelValues("created").Inc()
		}

		c.JSON(http.StatusCreated, resp)
	})
}
