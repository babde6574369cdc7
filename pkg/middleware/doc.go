// Package middleware provides HTTP middleware for session authentication and
// login throttling.
//
// # Session Authentication
//
// AuthMiddleware reads the session token from "Authorization: Bearer <token>"
// or the cityrecords_session cookie, resolves it through the auth gate and
// stores the resulting *auth.Identity in the request context:
//
//	authMW := middleware.NewAuthMiddleware(gate, true)
//	router.Use(authMW.Handler)
//	identity := middleware.GetIdentity(r)
//
// In optional mode an absent or invalid session passes through anonymously so
// the permission layer can answer 401.
//
// # Rate Limiting
//
// RateLimiter keeps one golang.org/x/time/rate bucket per client address.
// DistributedRateLimiter counts attempts in Redis when sessions live there:
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultLoginRateLimitConfig())
//	throttle := middleware.NewRateLimitMiddleware(limiter, nil, metrics)
//	router.Handle("/api/login", throttle.Handler(loginHandler))
//
// # Related Packages
//
//   - pkg/auth: Session resolution
//   - pkg/rbac: Permission checking
package middleware
