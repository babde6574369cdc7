package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miamirp/cityrecords/pkg/session"
)

var (
	// ErrUnauthenticated means the request carries no usable identity:
	// no session, an expired or unknown session, or an inactive user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials is returned by Login for any credential failure.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound is returned by a UserSource when no user matches.
	ErrUserNotFound = errors.New("user not found")
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 12 * time.Hour

// UserSource loads users for authentication.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Gate authenticates credentials and resolves session tokens to identities.
type Gate struct {
	users     UserSource
	sessions  session.Store
	hasher    *PasswordHasher
	tokens    *TokenGenerator
	ttl       time.Duration
	now       func() time.Time
	dummyHash string
}

// NewGate creates a Gate issuing sessions that live for ttl.
func NewGate(users UserSource, sessions session.Store, hasher *PasswordHasher, ttl time.Duration) (*Gate, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	// Compared against for unknown usernames so both paths pay for bcrypt
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}

	return &Gate{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		tokens:    NewTokenGenerator(),
		ttl:       ttl,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// Hasher returns the password hasher used by the gate.
func (g *Gate) Hasher() *PasswordHasher {
	return g.hasher
}

// Login verifies credentials and opens a session. The returned token is the
// only copy; the store keeps a hash.
func (g *Gate) Login(ctx context.Context, username, password string) (*User, string, time.Time, error) {
	user, err := g.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = g.hasher.Verify(g.dummyHash, password)
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := g.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if !ok || !user.IsActive {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expires, err := g.Issue(ctx, user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, expires, nil
}

// Issue opens a session for an already-verified user.
func (g *Gate) Issue(ctx context.Context, user *User) (string, time.Time, error) {
	token, hash, err := g.tokens.GenerateToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := g.now()
	s := &session.Session{
		TokenHash: hash,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}
	if err := g.sessions.Create(ctx, s); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}
	return token, s.ExpiresAt, nil
}

// Resolve maps a session token to the current identity of its user. The
// user is re-read so role changes and deactivation apply immediately.
func (g *Gate) Resolve(ctx context.Context, token string) (*Identity, error) {
	if err := g.tokens.ValidateTokenFormat(token); err != nil {
		return nil, ErrUnauthenticated
	}

	s, err := g.sessions.Get(ctx, g.tokens.HashToken(token))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.Expired(g.now()) {
		return nil, ErrUnauthenticated
	}

	user, err := g.users.GetUser(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}

	return user.Identity(), nil
}

// Logout ends the session for token. Unknown tokens are ignored.
func (g *Gate) Logout(ctx context.Context, token string) error {
	if g.tokens.ValidateTokenFormat(token) != nil {
		return nil
	}
	return g.sessions.Delete(ctx, g.tokens.HashToken(token))
}
