package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
	"github.com/miamirp/cityrecords/pkg/storage"
)

// UserHandlers handles account management requests
type UserHandlers struct {
	users  storage.UserStore
	hasher *auth.PasswordHasher
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(users storage.UserStore, hasher *auth.PasswordHasher) *UserHandlers {
	return &UserHandlers{
		users:  users,
		hasher: hasher,
	}
}

// RegisterRoutes registers /api/users routes guarded by s
func (h *UserHandlers) RegisterRoutes(router *mux.Router, s *Server) {
	router.Handle("/api/users/search", s.protect(rbac.KindUser, rbac.OpSearch, h.searchUsers)).Methods("GET")
	router.Handle("/api/users", s.protectRead(rbac.KindUser, h.listUsers)).Methods("GET")
	router.Handle("/api/users", s.protect(rbac.KindUser, rbac.OpCreate, h.createUser)).Methods("POST")
	router.Handle("/api/users/{id}", s.protect(rbac.KindUser, rbac.OpGet, h.getUser)).Methods("GET")
	router.Handle("/api/users/{id}", s.protect(rbac.KindUser, rbac.OpUpdate, h.updateUser)).Methods("PUT", "PATCH")
	router.Handle("/api/users/{id}",
		s.protect(rbac.KindUser, rbac.OpDelete, h.deleteUser, rbac.TargetFromVar("id"))).Methods("DELETE")
}

// listUsers handles GET /api/users
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	var (
		users []*auth.User
		err   error
	)
	if term := httputil.SearchTerm(r); term != "" {
		users, err = h.users.SearchUsers(r.Context(), term)
	} else {
		users, err = h.users.ListUsers(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// searchUsers handles GET /api/users/search?q=
func (h *UserHandlers) searchUsers(w http.ResponseWriter, r *http.Request) {
	term := httputil.SearchTerm(r)
	if !httputil.RequireNonEmpty(w, term, "q") {
		return
	}

	users, err := h.users.SearchUsers(r.Context(), term)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// getUser handles GET /api/users/{id}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// createUser handles POST /api/users
func (h *UserHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeUser(w, r, records.ModeCreate)
	if !ok {
		return
	}

	user, err := h.newUser(input, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	creator := actorID(r)
	user.CreatedBy = &creator

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteCreated(w, user)
}

// newUser builds an account from a validated create payload.
func (h *UserHandlers) newUser(input *records.UserInput, active bool) (*auth.User, error) {
	hash, err := h.hasher.Hash(*input.Password)
	if err != nil {
		return nil, err
	}

	if input.IsActive != nil {
		active = *input.IsActive
	}

	return &auth.User{
		Username:     *input.Username,
		PasswordHash: hash,
		Role:         *input.Role,
		Department:   input.Department,
		IsActive:     active,
	}, nil
}

// updateUser handles PUT and PATCH /api/users/{id}
func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	input, ok := decodeUser(w, r, records.ModeUpdate)
	if !ok {
		return
	}

	patch := storage.UserPatch{
		Username:      input.Username,
		Role:          input.Role,
		Department:    input.Department,
		SetDepartment: input.DepartmentSet,
		IsActive:      input.IsActive,
	}
	if input.Password != nil {
		hash, err := h.hasher.Hash(*input.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.PasswordHash = &hash
	}

	user, err := h.users.UpdateUser(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// deleteUser handles DELETE /api/users/{id}. Accounts that authored records
// or other accounts are kept; deactivate them instead.
func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.users.DeleteUser(r.Context(), id)
	if errors.Is(err, storage.ErrConflict) {
		httputil.WriteConflict(w, "user is referenced by existing records; deactivate it instead")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	httputil.WriteNoContent(w)
}

func decodeUser(w http.ResponseWriter, r *http.Request, mode records.Mode) (*records.UserInput, bool) {
	body, err := httputil.ParseJSONObject(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return nil, false
	}

	input, err := records.ValidateUser(body, mode)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return input, true
}
