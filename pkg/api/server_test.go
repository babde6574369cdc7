package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/observability"
)

func TestRouteTable(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/login"},
		{"POST", "/api/logout"},
		{"POST", "/api/register"},
		{"GET", "/api/user"},
		{"GET", "/api/wanted"},
		{"GET", "/api/citizens/wanted"},
		{"GET", "/api/citizens/7/vehicles"},
		{"GET", "/api/citizens/7/criminal-records"},
		{"GET", "/api/criminal-records/citizen/7"},
		{"GET", "/api/driver-licenses/citizen/7"},
		{"GET", "/api/properties/search"},
		{"GET", "/api/permits"},
		{"POST", "/api/businesses"},
		{"GET", "/api/vehicles/3"},
		{"PUT", "/api/vehicles/3"},
		{"PATCH", "/api/vehicles/3"},
		{"DELETE", "/api/vehicles/3"},
		{"GET", "/api/users/search"},
		{"DELETE", "/api/users/3"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			assert.True(t, env.server.Router().Match(req, &match), "route should exist")
			assert.NoError(t, match.MatchErr)
		})
	}
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/spaceships", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeObject(t, rec)["error"])

	rec = env.do(http.MethodPost, "/api/wanted", "", map[string]interface{}{})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.CORSOrigins = []string{"http://localhost:3000"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/citizens", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/citizens", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, "trace-me", rec.Header().Get("X-Request-ID"))
}

func TestServerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	env := newTestEnv(t, func(d *Deps) { d.Metrics = metrics })

	it := env.as("admin", auth.RoleIT)
	dmv := env.as("clerk", auth.RoleDMV)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/users", it, nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/users", dmv, nil).Code)
	require.Equal(t, http.StatusUnauthorized,
		env.do(http.MethodPost, "/api/login", "", LoginRequest{Username: "clerk", Password: "nope-nope"}).Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("User", "ListAll", "allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("User", "ListAll", "denied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("failure")))

	count, err := testutil.GatherAndCount(registry, "cityrecords_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per route and status")
}
