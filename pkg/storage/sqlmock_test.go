package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
)

// Test helper to create a store over a mock Postgres connection
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return New(db, Postgres), mock, db
}

func TestPostgres_GetUsesNumberedPlaceholders(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM driver_licenses WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), rbac.KindDriverLicense, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SearchBindsOnePatternPerColumn(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	cols := recordColumns(records.MustSchema(rbac.KindProperty))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE (LOWER(address) LIKE LOWER($1) ESCAPE '\' OR LOWER(type) LIKE LOWER($2) ESCAPE '\') ORDER BY created_at DESC, id DESC`)).
		WithArgs(`%50\%%`, `%50\%%`).
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := store.Search(context.Background(), rbac.KindProperty, "50%")
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pq.Error{Code: "23505"}, ErrConflict},
		{"foreign key violation", &pq.Error{Code: "23503"}, ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, db := newMockStore(t)
			defer db.Close()

			mock.ExpectQuery("INSERT INTO vehicles").WillReturnError(tt.err)

			values := vehicleValues("ABC", "Ford", "F150", "red", 1)
			_, err := store.Create(context.Background(), rbac.KindVehicle, values, 1)
			assert.ErrorIs(t, err, tt.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgres_DeleteForeignKeyIsConflict(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM citizens WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := store.Delete(context.Background(), rbac.KindCitizen, 3)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgres_UnexpectedErrorIsWrapped(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT COUNT").WillReturnError(boom)

	_, err := store.CountUsers(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgres_DeleteUserChecksReferencesFirst(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM citizens WHERE created_by = $1 OR updated_by = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := store.DeleteUser(context.Background(), 4)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateUserNotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET is_active = $1 WHERE id = $2 RETURNING")).
		WithArgs(false, int64(8)).
		WillReturnError(sql.ErrNoRows)

	inactive := false
	_, err := store.UpdateUser(context.Background(), 8, UserPatch{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "$3", d.Placeholder(3))

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "?", d.Placeholder(3))

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}
