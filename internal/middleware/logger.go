package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartess/backend/pkg/apperr"
)

const (
	// ContextRequestID is the gin context key for the request id.
	ContextRequestID = "request_id"
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"
)

// Logger returns a zap-based request logging middleware. Errors attached with c.Error are
// logged with their cause; 5xx responses log at error level.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		clientIP := c.ClientIP()
		method := c.Request.Method

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", clientIP),
			zap.String("request_id", requestID),
		}
		for _, ge := range c.Errors {
			e := apperr.As(ge.Err)
			fields = append(fields, zap.String("error_code", e.Code))
			if e.Reason != "" {
				fields = append(fields, zap.String("reason", e.Reason))
			}
			if e.Err != nil {
				fields = append(fields, zap.NamedError("cause", e.Err))
			}
		}

		level := zapcore.InfoLevel
		if statusCode >= 500 {
			level = zapcore.ErrorLevel
		}
		logger.Log(level, "request", fields...)
	}
}
