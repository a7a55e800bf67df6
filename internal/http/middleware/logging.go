package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request with latency and status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		if c.Writer.Status() >= 500 {
			slog.ErrorContext(ctx, "request failed", attrs...)
			return
		}
		slog.InfoContext(ctx, "request completed", attrs...)
	}
}

// Recovery converts panics into 500 responses with a logged stack location.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "panic recovered in handler",
			"panic", recovered,
			"path", c.Request.URL.Path)
		c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
	})
}
