package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})

	for _, id := range []string{"1", "2", "3"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vehicles/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/vehicles/{id}", "404"))
	assert.Equal(t, float64(3), got)
}

func TestMetrics_RecordAuthzDecision(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordAuthzDecision("Citizen", "Create", true)
	metrics.RecordAuthzDecision("Citizen", "Create", false)
	metrics.RecordAuthzDecision("Citizen", "Create", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("Citizen", "Create", "allowed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("Citizen", "Create", "denied")))
}

func TestMetrics_RecordStoreOperation(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordStoreOperation("Vehicle", "search", 5*time.Millisecond, nil)
	metrics.RecordStoreOperation("Vehicle", "search", 5*time.Millisecond, errors.New("x"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("Vehicle", "search", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("Vehicle", "search", "error")))
}

func TestMetrics_RecordLogin(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.RecordLogin("throttled")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("throttled")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordLogin("success")

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	metrics.RegisterDBStats(db)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "cityrecords_login_attempts_total"))
	assert.True(t, strings.Contains(body, "go_sql_max_open_connections"))
}
