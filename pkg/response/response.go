package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartess/backend/pkg/apperr"
)

// ErrorBody is the error envelope: a human message plus a stable code.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MessageBody is returned by mutating endpoints on success.
type MessageBody struct {
	Message string `json:"message"`
}

// OK sends a 200 JSON response with body.
func OK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

// Message sends a 200 {"message": msg}.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageBody{Message: msg})
}

// Error renders err as {error, code} with the status of its kind and attaches it to the
// gin context so the request logger records the cause.
func Error(c *gin.Context, err error) {
	e := apperr.As(err)
	_ = c.Error(e)
	c.JSON(e.Status(), ErrorBody{Error: e.Message, Code: e.Code})
}

// Abort renders err like Error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, msg string) {
	Error(c, apperr.Validation(apperr.CodeInvalidRequest, msg))
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, code, msg string) {
	Error(c, apperr.Auth(code, msg))
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, retryAfter int) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "Rate limit exceeded",
		"code":        apperr.CodeRateLimited,
		"retry_after": retryAfter,
	})
}

// Internal sends the generic 500.
func Internal(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: "Internal server error", Code: apperr.CodeUnexpected})
}
