// Package auth provides user identities, password handling and session
// authentication for the records backend.
//
// # Overview
//
// Every account has exactly one Role drawn from a closed set of department
// roles. A successful Login opens a session and hands the client an opaque
// token; later requests present the token and Gate.Resolve turns it back
// into an Identity, the request-scoped principal the rbac package evaluates.
//
// # Tokens
//
//	// Token format: crs_[base64url(32 random bytes)]
//	// Stored as SHA256 hash, never in plaintext
//	token, expires, err := gate.Issue(ctx, user)
//
// # Passwords
//
// Passwords are hashed with bcrypt. Login does the same amount of hashing
// work whether or not the username exists.
//
// # Related Packages
//
//   - pkg/session: Session persistence (memory, Redis)
//   - pkg/middleware: HTTP session authentication
//   - pkg/rbac: Role-based authorization
package auth
