package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartess/backend/pkg/apperr"
	"github.com/smartess/backend/pkg/response"
)

// ContextToken is the gin context key holding the raw bearer token.
const ContextToken = "token"

// Token extracts the bearer token from the Authorization header and stores it under ContextToken.
// Identity is resolved later by the handler, so a present but invalid token passes here.
func Token() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, apperr.Auth(apperr.CodeNoToken, "No token provided"))
			return
		}
		c.Set(ContextToken, token)
		c.Next()
	}
}

func bearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
