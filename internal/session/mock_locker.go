package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/engram-notes/engram-backend/internal/model"
)

// MockLocker implements Locker using an in-memory map for testing.
type MockLocker struct {
	locks       map[string]*model.EditingSession
	mu          sync.Mutex
	ttlDuration time.Duration
}

// NewMockLocker creates a new MockLocker with the default TTL.
func NewMockLocker() *MockLocker {
	return &MockLocker{
		locks:       make(map[string]*model.EditingSession),
		ttlDuration: DefaultTTL,
	}
}

func (m *MockLocker) AcquireLock(ctx context.Context, title, userID string) (*model.EditingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().Unix()

	if existing, ok := m.locks[title]; ok {
		// Allow if expired or same user
		if existing.ExpiresAt > now && existing.UserID != userID {
			return nil, fmt.Errorf("note is locked by another user")
		}
	}

	session := &model.EditingSession{
		Title:     title,
		UserID:    userID,
		ExpiresAt: now + int64(m.ttlDuration.Seconds()),
	}
	m.locks[title] = session
	return session, nil
}

func (m *MockLocker) Heartbeat(ctx context.Context, title, userID string) (*model.EditingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[title]
	if !ok || existing.UserID != userID {
		return nil, fmt.Errorf("lock not found or not owned by user")
	}

	existing.ExpiresAt = time.Now().Unix() + int64(m.ttlDuration.Seconds())
	return existing, nil
}

func (m *MockLocker) ReleaseLock(ctx context.Context, title, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[title]
	if !ok {
		return nil
	}
	if existing.UserID != userID {
		return fmt.Errorf("lock not owned by user")
	}
	delete(m.locks, title)
	return nil
}

func (m *MockLocker) GetLockStatus(ctx context.Context, title string) (*model.EditingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[title]
	if !ok {
		return nil, nil
	}
	if existing.ExpiresAt < time.Now().Unix() {
		return nil, nil
	}
	return existing, nil
}
