package session

import (
	"context"

	"github.com/engram-notes/engram-backend/internal/model"
)

// Locker manages advisory editing locks on note titles. The locks are a
// UI courtesy only; the write path's blob sha check remains the actual
// lost-update guard.
type Locker interface {
	// AcquireLock attempts to acquire a lock on a note for the given user.
	AcquireLock(ctx context.Context, title, userID string) (*model.EditingSession, error)

	// Heartbeat extends the lock TTL if the user owns the lock.
	Heartbeat(ctx context.Context, title, userID string) (*model.EditingSession, error)

	// ReleaseLock removes the lock if the user owns it.
	ReleaseLock(ctx context.Context, title, userID string) error

	// GetLockStatus retrieves the current lock status.
	GetLockStatus(ctx context.Context, title string) (*model.EditingSession, error)
}
