// Package session persists login sessions keyed by the SHA-256 hash of the
// session token. Two backends exist: an in-process map for single-instance
// and test deployments, and Redis for anything shared.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no live session matches a token hash.
var ErrNotFound = errors.New("session not found")

// Session binds a token hash to a user for a bounded lifetime.
type Session struct {
	TokenHash string    `json:"tokenHash"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store is implemented by session backends.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error
	// Get returns the live session for tokenHash or ErrNotFound.
	Get(ctx context.Context, tokenHash string) (*Session, error)
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, tokenHash string) error
	// Purge drops sessions expired at now and reports how many were removed.
	Purge(ctx context.Context, now time.Time) (int, error)
}
