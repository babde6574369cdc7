package rbac

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/middleware"
)

// DecisionRecorder receives the outcome of every HTTP authorization check.
type DecisionRecorder interface {
	RecordAuthzDecision(kind, operation string, allowed bool)
}

// PermissionMiddleware provides middleware for permission checking
type PermissionMiddleware struct {
	engine   *Engine
	recorder DecisionRecorder
}

// NewPermissionMiddleware creates a new permission middleware. recorder may be nil.
func NewPermissionMiddleware(engine *Engine, recorder DecisionRecorder) *PermissionMiddleware {
	return &PermissionMiddleware{
		engine:   engine,
		recorder: recorder,
	}
}

type requireConfig struct {
	targetVar string
}

// RequireOption customizes a Require check.
type RequireOption func(*requireConfig)

// TargetFromVar reads the target record id from the named mux path variable.
// A non-numeric value leaves the target unset; the handler rejects it.
func TargetFromVar(name string) RequireOption {
	return func(c *requireConfig) {
		c.targetVar = name
	}
}

// Require creates middleware that admits the request only when the engine
// permits (kind, op) for the request identity.
func (pm *PermissionMiddleware) Require(kind Kind, op Operation, opts ...RequireOption) func(http.Handler) http.Handler {
	cfg := requireConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			check := Check{
				Identity:  middleware.GetIdentity(r),
				Kind:      kind,
				Operation: op,
			}

			if cfg.targetVar != "" {
				if raw, ok := mux.Vars(r)[cfg.targetVar]; ok {
					if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
						check.TargetID = &id
					}
				}
			}

			decision := pm.engine.Authorize(check)
			if pm.recorder != nil {
				pm.recorder.RecordAuthzDecision(string(kind), string(op), decision.Allowed)
			}

			if !decision.Allowed {
				if errors.Is(decision.Err, auth.ErrUnauthenticated) {
					httputil.WriteUnauthorized(w, "authentication required")
					return
				}
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny admits the request when any one of the (kind, op) pairs is
// permitted. Used for views that aggregate several kinds.
func (pm *PermissionMiddleware) RequireAny(pairs ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := middleware.GetIdentity(r)
			if identity == nil || !identity.IsActive {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			for _, p := range pairs {
				if pm.engine.Can(identity, p.Kind, p.Operation) {
					next.ServeHTTP(w, r)
					return
				}
			}

			httputil.WriteForbidden(w, "insufficient permissions")
		})
	}
}

// Permission names one (kind, operation) pair.
type Permission struct {
	Kind      Kind
	Operation Operation
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Kind) + ":" + string(p.Operation)
}
