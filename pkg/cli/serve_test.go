package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamirp/cityrecords/pkg/api"
	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/config"
	"github.com/miamirp/cityrecords/pkg/observability"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	useTestDatabase(t)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	a, err := buildApp(context.Background(), cfg, logger, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.shutdown.Shutdown(context.Background()) })
	return a
}

func TestBuildApp_ServesAPI(t *testing.T) {
	a := newTestApp(t)

	hash, err := auth.NewPasswordHasher(4).Hash("dispatch-1")
	require.NoError(t, err)
	require.NoError(t, a.store.CreateUser(context.Background(), &auth.User{
		Username: "dispatch", PasswordHash: hash, Role: auth.RoleMPD, IsActive: true,
	}))

	rec := httptest.NewRecorder()
	a.api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, _ := json.Marshal(api.LoginRequest{Username: "dispatch", Password: "dispatch-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	a.api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	req = httptest.NewRequest(http.MethodGet, "/api/criminal-records", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec = httptest.NewRecorder()
	a.api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildApp_OpsEndpoints(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), Version)

	rec = httptest.NewRecorder()
	a.ops.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_sql_max_open_connections")
}

func TestBuildApp_FailsOnUnreachableDatabase(t *testing.T) {
	useTestDatabase(t)
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Database.URL = "file:/nonexistent-dir/records.db?mode=ro"

	_, err = buildApp(context.Background(), cfg, observability.NewLogger(observability.ErrorLevel, io.Discard), false)
	require.Error(t, err)
	assert.Equal(t, ExitStorageError, GetExitCode(err))
}

func TestApplyReload(t *testing.T) {
	a := newTestApp(t)
	require.Equal(t, observability.ErrorLevel, a.logger.Level())

	next := config.Default()
	next.Observability.LogLevel = "debug"
	a.applyReload(next)
	assert.Equal(t, observability.DebugLevel, a.logger.Level())
}
