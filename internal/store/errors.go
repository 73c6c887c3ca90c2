package store

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuth is returned when the credential is invalid or expired.
	ErrAuth = errors.New("authentication failed")

	// ErrNoRepository is returned when the credential has no installation
	// or no repository visible to it. Fatal for the session, unlike
	// ErrDirectoryNotFound which is a normal first-use condition.
	ErrNoRepository = errors.New("no repository accessible")

	// ErrNotFound is returned when a requested object does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned on a blob sha mismatch during an update, or
	// when creating a file whose path already exists.
	ErrConflict = errors.New("object id mismatch")

	// ErrDirectoryNotFound is returned when the engram directory has not
	// been created yet. Callers bootstrap it rather than surfacing this.
	ErrDirectoryNotFound = errors.New("engram directory not found")
)

// RateLimitError is returned when the remote store throttles the request.
// Reset is zero when the remote did not say when the limit clears.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited by remote store"
	}
	return fmt.Sprintf("rate limited by remote store until %s", e.Reset.Format(time.RFC3339))
}
