package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// idempotencyKeyCtxKey is the Gin context key holding the validated token.
const idempotencyKeyCtxKey = "idempotency_key"

// RequireIdempotencyKey enforces the X-Idempotency-Key header on the ingest
// path. The key must be a UUID v4, which keeps clients from reusing
// low-entropy tokens across unrelated requests.
func RequireIdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("X-Idempotency-Key"))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "header X-Idempotency-Key is required"})
			return
		}
		u, err := uuid.Parse(key)
		if err != nil || u.Version() != 4 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "header X-Idempotency-Key must be a valid UUID v4"})
			return
		}
		c.Set(idempotencyKeyCtxKey, key)
		c.Next()
	}
}

// IdempotencyKey returns the validated token from the request context.
func IdempotencyKey(c *gin.Context) string {
	v, _ := c.Get(idempotencyKeyCtxKey)
	s, _ := v.(string)
	return s
}
