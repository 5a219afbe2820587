package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamhaus/play-history-service/internal/handlers"
	"github.com/streamhaus/play-history-service/internal/service"
	"github.com/streamhaus/play-history-service/internal/store"
)

// NewRouter wires public endpoints and the /v1 API.
// Public: /health, /ready, /metrics
// API:    POST /v1/play, GET /v1/history/most-watched,
//         GET /v1/history/:userId, PATCH /v1/history/:userId
func NewRouter(st *store.PostgresStore, svc *service.PlayEvents) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	handlers.RegisterPlayRoutes(v1, svc)
	handlers.RegisterHistoryRoutes(v1, svc)

	return r
}
