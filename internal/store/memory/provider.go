package memory

import (
	"context"
	"sync"

	"github.com/engram-notes/engram-backend/internal/store"
)

// Provider implements store.Provider with one in-memory repository per
// user. State lives for the process lifetime only (DEV_MODE and tests).
type Provider struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewProvider creates a new in-memory provider.
func NewProvider() *Provider {
	return &Provider{stores: make(map[string]*Store)}
}

// GetStore returns the user's in-memory repository, creating it on first use.
func (p *Provider) GetStore(ctx context.Context, userID string) (store.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stores[userID]
	if !ok {
		s = NewStore(store.Repo{Owner: "demo", Name: "engrams"})
		p.stores[userID] = s
	}
	return s, nil
}
