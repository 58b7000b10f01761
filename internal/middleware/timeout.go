package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout puts a deadline on the request context so downstream work that
// respects ctx (database calls, breach lookups) unwinds instead of running
// unbounded.
func Timeout(duration time.Duration) gin.HandlerFunc {
	if duration <= 0 {
		duration = defaultRequestTimeout
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), duration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
