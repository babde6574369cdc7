package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/config"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/middleware"
	"github.com/miamirp/cityrecords/pkg/observability"
	"github.com/miamirp/cityrecords/pkg/records"
	"github.com/miamirp/cityrecords/pkg/storage"
)

// AuthHandlers handles login, logout, registration and the current user
type AuthHandlers struct {
	gate         *auth.Gate
	users        storage.UserStore
	registration config.RegistrationMode
	cookieSecure bool
	metrics      *observability.Metrics
}

// NewAuthHandlers creates a new auth handlers instance. metrics may be nil.
func NewAuthHandlers(gate *auth.Gate, users storage.UserStore, registration config.RegistrationMode, cookieSecure bool, metrics *observability.Metrics) *AuthHandlers {
	return &AuthHandlers{
		gate:         gate,
		users:        users,
		registration: registration,
		cookieSecure: cookieSecure,
		metrics:      metrics,
	}
}

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned when a session is opened
type SessionResponse struct {
	User      *auth.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// RegisterRoutes registers authentication routes. throttle, when set,
// guards login and registration.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, authn *middleware.AuthMiddleware, throttle func(http.Handler) http.Handler) {
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	router.Handle("/api/login", throttle(http.HandlerFunc(h.login))).Methods("POST")
	router.Handle("/api/register", throttle(http.HandlerFunc(h.register))).Methods("POST")
	router.HandleFunc("/api/logout", h.logout).Methods("POST")
	router.Handle("/api/user", authn.Handler(middleware.RequireActive(http.HandlerFunc(h.currentUser)))).Methods("GET")
}

// login handles POST /api/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		func() (bool, string) { return req.Username != "", "username is required" },
		func() (bool, string) { return req.Password != "", "password is required" },
	) {
		return
	}

	user, token, expires, err := h.gate.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.recordLogin("failure")
			observability.FromContext(r.Context()).WithField("username", req.Username).Info("login rejected")
		}
		writeError(w, r, err)
		return
	}

	h.recordLogin("success")
	h.setSessionCookie(w, token, expires)
	httputil.WriteSuccess(w, SessionResponse{User: user, Token: token, ExpiresAt: expires})
}

// register handles POST /api/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	if h.registration == config.RegistrationDisabled {
		httputil.WriteForbidden(w, "registration is disabled")
		return
	}

	input, ok := decodeUser(w, r, records.ModeCreate)
	if !ok {
		return
	}

	// Self-registered accounts cannot pick privileged roles when they go live
	// without review
	if h.registration == config.RegistrationOpen && (*input.Role == auth.RoleIT || input.Role.IsDirector()) {
		httputil.WriteFieldErrors(w, invalidData, map[string]string{"role": "cannot be self-assigned"})
		return
	}

	active := h.registration == config.RegistrationOpen
	hash, err := h.gate.Hasher().Hash(*input.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := &auth.User{
		Username:     *input.Username,
		PasswordHash: hash,
		Role:         *input.Role,
		Department:   input.Department,
		IsActive:     active,
	}

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		writeError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{"username": user.Username, "role": user.Role, "active": active}).
		Info("account registered")

	if !active {
		httputil.WriteCreated(w, user)
		return
	}

	token, expires, err := h.gate.Issue(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token, expires)
	httputil.WriteCreated(w, SessionResponse{User: user, Token: token, ExpiresAt: expires})
}

// logout handles POST /api/logout. It succeeds without a session.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.TokenFromRequest(r); ok {
		if err := h.gate.Logout(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteNoContent(w)
}

// currentUser handles GET /api/user
func (h *AuthHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	user, err := h.users.GetUser(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) recordLogin(result string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(result)
	}
}
