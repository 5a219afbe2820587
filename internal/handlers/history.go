package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamhaus/play-history-service/internal/metrics"
	"github.com/streamhaus/play-history-service/internal/service"
)

// parseLimit reads an optional integer limit query parameter. The second
// return value is false when the raw value is not an integer; range checks
// belong to the core.
func parseLimit(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RegisterHistoryRoutes registers the serving-path endpoints.
//
// GET   /history/most-watched?from=...&to=...&limit=...
// GET   /history/:userId?limit=...&cursor=...
// PATCH /history/:userId  (anonymization, right to be forgotten)
//
// The static most-watched segment coexists with the :userId parameter route;
// gin resolves the static path first.
func RegisterHistoryRoutes(r gin.IRoutes, svc *service.PlayEvents) {
	r.GET("/history/most-watched", func(c *gin.Context) {
		fromStr := c.Query("from")
		toStr := c.Query("to")
		if fromStr == "" || toStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
			return
		}

		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}

		limit, ok := parseLimit(c, service.DefaultMostWatchedLimit)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		resp, err := svc.MostWatched(c.Request.Context(), from, to, limit)
		if err != nil {
			respondError(c, err)
			return
		}

		metrics.MostWatchedQueries.Inc()
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/history/:userId", func(c *gin.Context) {
		limit, ok := parseLimit(c, service.DefaultHistoryLimit)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		page, err := svc.History(c.Request.Context(), c.Param("userId"), limit, c.Query("cursor"))
		if err != nil {
			respondError(c, err)
			return
		}

		metrics.HistoryQueries.Inc()
		c.JSON(http.StatusOK, page)
	})

	r.PATCH("/history/:userId", func(c *gin.Context) {
		resp, err := svc.Anonymize(c.Request.Context(), c.Param("userId"))
		if err != nil {
			respondError(c, err)
			return
		}

		metrics.RecordsAnonymized.Add(float64(resp.AnonymizedCount))
		c.JSON(http.StatusOK, resp)
	})
}
