package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinMiddleware logs every HTTP request with a request-scoped logger that
// handlers can retrieve via GetGinLogger. Level follows the response status:
// 5xx at error, 4xx at warn, the rest at info.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID, _ := c.Get("request_id")
		requestIDStr, _ := requestID.(string)

		reqLogger := logger.With(
			zap.String("request_id", requestIDStr),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		c.Set("logger", reqLogger)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			reqLogger.Error("HTTP Request", fields...)
		case status >= 400:
			reqLogger.Warn("HTTP Request", fields...)
		default:
			reqLogger.Info("HTTP Request", fields...)
		}
	}
}

// Recovery converts panics into logged 500 responses.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID, _ := c.Get("request_id")
				requestIDStr, _ := requestID.(string)

				logger.Error("Panic recovered",
					zap.String("request_id", requestIDStr),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a nop logger when the
// middleware did not run (direct handler tests).
func GetGinLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get("logger"); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
