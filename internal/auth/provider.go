package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned by providers when a token is rejected or names no user.
var ErrInvalidToken = errors.New("invalid token")

// Identity is what the auth provider knows about a token's owner.
type Identity struct {
	ID    string
	Email string
}

// Provider maps a bearer token to an identity.
type Provider interface {
	GetUser(ctx context.Context, token string) (*Identity, error)
}
