package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smartess/backend/pkg/apperr"
	"github.com/smartess/backend/pkg/response"
)

// Recovery turns a handler panic into the generic 500 and logs it with the stack.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(ContextRequestID)),
					zap.Stack("stack"),
				)
				response.Abort(c, apperr.Unexpected(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
