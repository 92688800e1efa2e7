package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one call per completed HTTP request.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, elapsed time.Duration)
}

// RequestMetrics records every request under its route template.
func RequestMetrics(rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rec.RecordRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
