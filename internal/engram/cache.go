package engram

import (
	"sync"

	"github.com/engram-notes/engram-backend/internal/store"
)

// RepoCache holds the repository resolved for each identity. Populated
// once per session, invalidated at logout; never persisted. Keeping it
// outside the identity keeps the identity itself immutable.
type RepoCache struct {
	mu    sync.Mutex
	repos map[string]store.Repo
}

// NewRepoCache creates an empty cache.
func NewRepoCache() *RepoCache {
	return &RepoCache{repos: make(map[string]store.Repo)}
}

// Get returns the cached repository for the identity, if resolved.
func (c *RepoCache) Get(userID string) (store.Repo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	repo, ok := c.repos[userID]
	return repo, ok
}

// Put records the resolved repository for the identity.
func (c *RepoCache) Put(userID string, repo store.Repo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[userID] = repo
}

// Invalidate drops the identity's entry, forcing re-resolution on the
// next operation.
func (c *RepoCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.repos, userID)
}
