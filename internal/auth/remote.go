package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteProvider asks the hosted auth service who owns a token.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteProvider creates a provider for the auth service at baseURL.
// A nil client gets a client with the given timeout.
func NewRemoteProvider(baseURL, apiKey string, timeout time.Duration, client *http.Client) *RemoteProvider {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &RemoteProvider{baseURL: baseURL, apiKey: apiKey, client: client}
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GetUser calls GET {baseURL}/auth/v1/user. Any non-200 answer is ErrInvalidToken;
// transport failures are returned wrapped so the caller can log them.
func (p *RemoteProvider) GetUser(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidToken
	}
	var u remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if u.Email == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{ID: u.ID, Email: u.Email}, nil
}
