package rbac

import (
	"errors"
	"fmt"
	"time"

	"github.com/miamirp/cityrecords/pkg/auth"
)

// ErrForbidden means the identity is authenticated but not permitted.
var ErrForbidden = errors.New("insufficient permissions")

// Check is a single authorization question.
type Check struct {
	Identity  *auth.Identity
	Kind      Kind
	Operation Operation
	// TargetID is the id of the record acted on, when there is one.
	TargetID *int64
}

// Decision is the outcome of a Check. Err is nil when Allowed, otherwise
// auth.ErrUnauthenticated or ErrForbidden.
type Decision struct {
	Allowed   bool
	Err       error
	Reason    string
	CheckedAt time.Time
}

// Engine evaluates checks against a policy. It has no side effects.
type Engine struct {
	policy *Policy
}

// NewEngine creates an engine over policy, or DefaultPolicy when nil.
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{policy: policy}
}

// Policy returns the table the engine evaluates.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Authorize evaluates check in order: identity present and active, role in
// the permitted set, then the self-deletion rule for users.
func (e *Engine) Authorize(check Check) Decision {
	now := time.Now()

	id := check.Identity
	if id == nil || !id.IsActive {
		return Decision{Err: auth.ErrUnauthenticated, Reason: "no active identity", CheckedAt: now}
	}

	allowed := e.policy.Allowed(check.Kind, check.Operation)
	if !allowed.Permits(id.Role) {
		return Decision{
			Err:       ErrForbidden,
			Reason:    fmt.Sprintf("role %s may not %s %s", id.Role, check.Operation, check.Kind),
			CheckedAt: now,
		}
	}

	if check.Kind == KindUser && check.Operation == OpDelete &&
		check.TargetID != nil && *check.TargetID == id.ID {
		return Decision{Err: ErrForbidden, Reason: "users cannot delete their own account", CheckedAt: now}
	}

	return Decision{Allowed: true, Reason: "permitted by policy", CheckedAt: now}
}

// Can is Authorize reduced to a boolean.
func (e *Engine) Can(id *auth.Identity, kind Kind, op Operation) bool {
	return e.Authorize(Check{Identity: id, Kind: kind, Operation: op}).Allowed
}
