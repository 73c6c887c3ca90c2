package github

import (
	"context"
	"fmt"

	"github.com/engram-notes/engram-backend/internal/auth"
	"github.com/engram-notes/engram-backend/internal/store"
)

// Provider implements store.Provider for the GitHub API.
type Provider struct {
	authService *auth.AuthService
}

// NewProvider creates a new GitHub provider.
func NewProvider(authService *auth.AuthService) *Provider {
	return &Provider{authService: authService}
}

// GetStore returns a Client authenticated as the given user.
func (p *Provider) GetStore(ctx context.Context, userID string) (store.Store, error) {
	client, err := p.authService.GetClient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}
	return NewClient(client), nil
}
