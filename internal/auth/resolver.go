package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smartess/backend/internal/middleware"
	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/pkg/apperr"
	"github.com/smartess/backend/pkg/response"
)

// UserStore looks up local users by email.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Resolver turns a bearer token into a local user. Every call re-resolves; nothing is cached.
type Resolver struct {
	provider Provider
	users    UserStore
	logger   *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(provider Provider, users UserStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{provider: provider, users: users, logger: logger}
}

// Verify checks the token with the provider only.
func (r *Resolver) Verify(ctx context.Context, token string) (*Identity, error) {
	id, err := r.provider.GetUser(ctx, token)
	if err != nil || id == nil {
		if err != nil && !errors.Is(err, ErrInvalidToken) {
			r.logger.Warn("auth provider call failed", zap.Error(err))
		}
		return nil, apperr.Auth(apperr.CodeInvalidToken, "Invalid token")
	}
	return id, nil
}

// Resolve verifies the token and loads the local user row by the provider's email.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	id, err := r.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := r.users.GetByEmail(ctx, id.Email)
	if errors.Is(err, ErrUserNotFound) || (err == nil && u == nil) {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
	}
	if err != nil {
		r.logger.Error("user lookup failed", zap.String("email", id.Email), zap.Error(err))
		return nil, apperr.DataAccess("Failed to fetch user data.", err)
	}
	return u, nil
}

// CurrentUser resolves the request's token and renders the error response on failure.
func (r *Resolver) CurrentUser(c *gin.Context) (*models.User, bool) {
	u, err := r.Resolve(c.Request.Context(), c.GetString(middleware.ContextToken))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return u, true
}

// VerifyRequest checks the request's token only and renders the error response on failure.
func (r *Resolver) VerifyRequest(c *gin.Context) bool {
	if _, err := r.Verify(c.Request.Context(), c.GetString(middleware.ContextToken)); err != nil {
		response.Error(c, err)
		return false
	}
	return true
}
