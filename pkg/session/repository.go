package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when no session is stored under a name.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists completed login sessions so an embedder can
// reuse credentials across restarts without a fresh QR login.
type SessionRepository interface {
	// Save stores or replaces the session stored under name.
	Save(ctx context.Context, name string, sess Session) error

	// Get returns the session stored under name, or ErrSessionNotFound.
	Get(ctx context.Context, name string) (Session, error)

	// Delete removes the session stored under name. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
