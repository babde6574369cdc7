package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/contextkeys"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/observability"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "cityrecords_session"

// SessionResolver turns a presented token into the caller's current identity.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Identity, error)
}

// AuthMiddleware resolves the session token on every request
type AuthMiddleware struct {
	resolver SessionResolver
	optional bool // If true, requests without a valid session pass through anonymously
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver SessionResolver, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with session authentication. The user row is
// re-read on each request, so deactivation and role changes apply at once.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromRequest(r)
		if !ok {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		identity, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			logger := observability.FromContext(r.Context()).WithError(err)
			if !errors.Is(err, auth.ErrUnauthenticated) {
				logger.Error("failed to resolve session")
				httputil.WriteInternalError(w)
				return
			}
			logger.Debug("session rejected")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		ctx = contextkeys.WithSessionToken(ctx, token)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(identity.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest extracts the session token from the Authorization header
// ("Bearer <token>") or, failing that, the session cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
			return strings.TrimSpace(parts[1]), true
		}
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// GetIdentity extracts the authenticated identity from the request
func GetIdentity(r *http.Request) *auth.Identity {
	return IdentityFromContext(r.Context())
}

// IdentityFromContext extracts the authenticated identity from a context
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireActive rejects requests without an active identity. Used by routes
// that need a session but no particular permission, such as GET /api/user.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil || !identity.IsActive {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
