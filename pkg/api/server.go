package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/config"
	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/middleware"
	"github.com/miamirp/cityrecords/pkg/observability"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
	"github.com/miamirp/cityrecords/pkg/storage"
)

// Deps are the collaborators of the API server. Metrics, LoginLimiter and
// the HTTP settings are optional.
type Deps struct {
	Records storage.RecordStore
	Users   storage.UserStore
	Gate    *auth.Gate
	Engine  *rbac.Engine
	Logger  *observability.Logger
	Metrics *observability.Metrics

	LoginLimiter middleware.Limiter
	LoginLimit   *middleware.RateLimitConfig

	Registration   config.RegistrationMode
	CookieSecure   bool
	RequestTimeout time.Duration
	CORSOrigins    []string
	MaxBodyBytes   int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	deps    Deps
	authn   *middleware.AuthMiddleware
	authz   *rbac.PermissionMiddleware
	handler http.Handler

	recordHandlers []*RecordHandlers
	userHandlers   *UserHandlers
	authHandlers   *AuthHandlers
}

// NewServer creates a new API server with every route registered
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.Engine == nil {
		deps.Engine = rbac.NewEngine(nil)
	}
	if deps.Registration == "" {
		deps.Registration = config.RegistrationApproval
	}

	// A nil *Metrics must not become a non-nil interface
	var decisions rbac.DecisionRecorder
	var logins middleware.RejectionRecorder
	if deps.Metrics != nil {
		decisions = deps.Metrics
		logins = deps.Metrics
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		authn:  middleware.NewAuthMiddleware(deps.Gate, false),
		authz:  rbac.NewPermissionMiddleware(deps.Engine, decisions),
	}

	for _, kind := range records.RecordKinds() {
		s.recordHandlers = append(s.recordHandlers, NewRecordHandlers(kind, deps.Records))
	}
	s.userHandlers = NewUserHandlers(deps.Users, deps.Gate.Hasher())
	s.authHandlers = NewAuthHandlers(deps.Gate, deps.Users, deps.Registration, deps.CookieSecure, deps.Metrics)

	var throttle func(http.Handler) http.Handler
	if deps.LoginLimiter != nil {
		throttle = middleware.NewRateLimitMiddleware(deps.LoginLimiter, deps.LoginLimit, logins).Handler
	}

	s.authHandlers.RegisterRoutes(s.router, s.authn, throttle)
	s.registerCitizenViews()
	for _, h := range s.recordHandlers {
		h.RegisterRoutes(s.router, s)
	}
	s.userHandlers.RegisterRoutes(s.router, s)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if deps.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(deps.Metrics)))
	}

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(deps.CORSOrigins),
		httputil.TimeoutMiddleware(deps.RequestTimeout),
	}
	if deps.MaxBodyBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(deps.MaxBodyBytes))
	}
	chain = append(chain, httputil.ContentTypeMiddleware)
	s.handler = httputil.Chain(chain...)(s.router)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// protect wraps h with session authentication and the (kind, op) check.
func (s *Server) protect(kind rbac.Kind, op rbac.Operation, h http.HandlerFunc, opts ...rbac.RequireOption) http.Handler {
	return s.authn.Handler(s.authz.Require(kind, op, opts...)(h))
}

// protectRead picks Search when the request carries a search term and
// ListAll otherwise.
func (s *Server) protectRead(kind rbac.Kind, h http.HandlerFunc) http.Handler {
	list := s.protect(kind, rbac.OpListAll, h)
	search := s.protect(kind, rbac.OpSearch, h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httputil.SearchTerm(r) != "" {
			search.ServeHTTP(w, r)
			return
		}
		list.ServeHTTP(w, r)
	})
}

// actorID returns the id stamped as creator or updater. The rbac check has
// already rejected requests without an identity.
func actorID(r *http.Request) int64 {
	if id := middleware.GetIdentity(r); id != nil {
		return id.ID
	}
	return 0
}
