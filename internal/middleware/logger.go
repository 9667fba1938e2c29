package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobpulse/notifier/pkg/logger"
)

// Logger logs every HTTP request with latency and status.
func Logger(log *logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(ContextRequestID),
		}

		if c.Writer.Status() >= 500 {
			log.Error(nil, "request failed", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
