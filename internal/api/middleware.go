package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/observability"
)

// LoggingMiddleware logs each request and records its latency. The metric
// is labeled with the route template, not the raw path: photo and claim
// IDs in the path would explode the label cardinality.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", duration.String(),
			"ip", c.ClientIP(),
		}
		if identity, ok := auth.IdentityFrom(c); ok {
			attrs = append(attrs, "user_id", identity.UserID)
		}
		slog.Info("request", attrs...)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			fmt.Sprintf("%d", status),
		).Observe(duration.Seconds())
	}
}
