package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/observability"
	"github.com/miamirp/cityrecords/pkg/session"
	"github.com/miamirp/cityrecords/pkg/storage"
)

const testPassword = "hunter22"

var testDBSeq int64

type testEnv struct {
	t        *testing.T
	server   *Server
	store    *storage.Store
	gate     *auth.Gate
	sessions *session.MemoryStore
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:api_test_%d?mode=memory&cache=shared&_foreign_keys=on", atomic.AddInt64(&testDBSeq, 1))
	store, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite3", URL: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Migrate(context.Background())
	require.NoError(t, err)

	sessions := session.NewMemoryStore()
	gate, err := auth.NewGate(store, sessions, auth.NewPasswordHasher(bcrypt.MinCost), 0)
	require.NoError(t, err)

	deps := Deps{
		Records: store,
		Users:   store,
		Gate:    gate,
		Logger:  observability.NewLogger(observability.ErrorLevel, io.Discard),
	}
	for _, m := range mutate {
		m(&deps)
	}

	return &testEnv{
		t:        t,
		server:   NewServer(deps),
		store:    store,
		gate:     gate,
		sessions: sessions,
	}
}

// user creates an account whose password is testPassword
func (e *testEnv) user(username string, role auth.Role, active bool) *auth.User {
	e.t.Helper()

	hash, err := e.gate.Hasher().Hash(testPassword)
	require.NoError(e.t, err)

	u := &auth.User{Username: username, PasswordHash: hash, Role: role, IsActive: active}
	require.NoError(e.t, e.store.CreateUser(context.Background(), u))
	return u
}

// token opens a session for u without going through login
func (e *testEnv) token(u *auth.User) string {
	e.t.Helper()
	tok, _, err := e.gate.Issue(context.Background(), u)
	require.NoError(e.t, err)
	return tok
}

// as creates an active user with role and returns its session token
func (e *testEnv) as(username string, role auth.Role) string {
	e.t.Helper()
	return e.token(e.user(username, role, true))
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// createCitizen posts a citizen as token and returns its id
func (e *testEnv) createCitizen(token, first, last string) int64 {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/citizens", token, map[string]interface{}{
		"firstName":   first,
		"lastName":    last,
		"dateOfBirth": "1988-07-04",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(decodeObject(e.t, rec)["id"].(float64))
}

func vehicleBody(plate, maker, color string, ownerID int64) map[string]interface{} {
	return map[string]interface{}{
		"licensePlate": plate,
		"make":         maker,
		"model":        "Sedan",
		"year":         "2019",
		"color":        color,
		"type":         "car",
		"ownerId":      ownerID,
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
