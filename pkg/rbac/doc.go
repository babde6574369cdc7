// Package rbac provides role-based access control for the records backend.
//
// # Overview
//
// Access is decided by a static table: for every record Kind and Operation
// the Policy names the set of roles allowed to perform it. Nothing is stored
// in the database and there is no role hierarchy. A Director role gets what
// is listed for it and nothing from its base department.
//
// # Kinds and Operations
//
//	KindCitizen, KindVehicle, KindDriverLicense, KindBusiness,
//	KindProperty, KindPermit, KindCriminalRecord, KindUser
//
//	OpListAll, OpGet, OpSearch, OpCreate, OpUpdate, OpDelete
//
// ListAll, Get and Search share one role set per kind.
//
// # Evaluation
//
// Engine.Authorize checks, in order:
//
//  1. the identity is present and active, else auth.ErrUnauthenticated
//  2. the identity's role is in the set for (kind, op), else ErrForbidden
//  3. a User Delete does not target the caller, else ErrForbidden
//
//	engine := rbac.NewEngine(nil) // DefaultPolicy
//	d := engine.Authorize(rbac.Check{
//		Identity:  identity,
//		Kind:      rbac.KindVehicle,
//		Operation: rbac.OpCreate,
//	})
//	if !d.Allowed { ... d.Err ... }
//
// # HTTP Middleware
//
//	pm := rbac.NewPermissionMiddleware(engine, metrics)
//	router.Handle("/api/users/{id}",
//		pm.Require(rbac.KindUser, rbac.OpDelete, rbac.TargetFromVar("id"))(handler),
//	).Methods("DELETE")
//
// The middleware answers 401 for a missing or inactive identity and 403 for
// a denial, before the handler touches the store.
//
// # Related Packages
//
//   - pkg/auth: Roles and identities
//   - pkg/middleware: Session authentication that populates the identity
package rbac
