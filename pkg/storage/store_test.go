package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
)

var testDBSeq int64

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:storage_test_%d?mode=memory&cache=shared&_foreign_keys=on", atomic.AddInt64(&testDBSeq, 1))
	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.now)}, opts...)

	store, err := Open(context.Background(), Config{Driver: "sqlite3", URL: dsn}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Migrate(context.Background())
	require.NoError(t, err)
	return store
}

func seedUser(t *testing.T, store *Store, username string, role auth.Role) *auth.User {
	t.Helper()
	u := &auth.User{Username: username, PasswordHash: "x", Role: role, IsActive: true}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func citizenValues(first, last string) records.Values {
	v, err := records.MustSchema(rbac.KindCitizen).Validate(map[string]interface{}{
		"firstName":   first,
		"lastName":    last,
		"dateOfBirth": "1990-04-12",
	}, records.ModeCreate)
	if err != nil {
		panic(err)
	}
	return v
}

func vehicleValues(plate, maker, model, color string, ownerID int64) records.Values {
	v, err := records.MustSchema(rbac.KindVehicle).Validate(map[string]interface{}{
		"licensePlate": plate,
		"make":         maker,
		"model":        model,
		"year":         2020,
		"color":        color,
		"type":         "sedan",
		"ownerId":      ownerID,
	}, records.ModeCreate)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)

	result, err := store.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Equal(t, len(Migrations()), result.Current)
}

func TestCreateAndGet_Citizen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	officer := seedUser(t, store, "dmv1", auth.RoleDMV)

	rec, err := store.Create(ctx, rbac.KindCitizen, citizenValues("Tony", "Montana"), officer.ID)
	require.NoError(t, err)

	assert.True(t, records.IsCitizenID(rec["citizenId"].(string)))
	assert.Equal(t, officer.ID, rec["createdBy"])
	assert.Equal(t, officer.ID, rec["updatedBy"])
	assert.Equal(t, false, rec["isWanted"])
	assert.Nil(t, rec["phone"])

	got, err := store.Get(ctx, rbac.KindCitizen, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCreate_CitizenIDCollisionRegenerates(t *testing.T) {
	ids := []string{"MIA-000001", "MIA-000001", "MIA-000002"}
	next := 0
	gen := func() (string, error) {
		id := ids[next]
		next++
		return id, nil
	}
	store := newTestStore(t, WithCitizenIDGenerator(gen))
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)

	first, err := store.Create(ctx, rbac.KindCitizen, citizenValues("A", "One"), u.ID)
	require.NoError(t, err)
	second, err := store.Create(ctx, rbac.KindCitizen, citizenValues("B", "Two"), u.ID)
	require.NoError(t, err)

	assert.Equal(t, "MIA-000001", first["citizenId"])
	assert.Equal(t, "MIA-000002", second["citizenId"])
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), rbac.KindVehicle, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)

	a, err := store.Create(ctx, rbac.KindCitizen, citizenValues("A", "First"), u.ID)
	require.NoError(t, err)
	b, err := store.Create(ctx, rbac.KindCitizen, citizenValues("B", "Second"), u.ID)
	require.NoError(t, err)

	list, err := store.List(ctx, rbac.KindCitizen)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID(), list[0].ID())
	assert.Equal(t, a.ID(), list[1].ID())
}

func TestSearch_VehiclesCaseInsensitiveAcrossFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)
	owner, err := store.Create(ctx, rbac.KindCitizen, citizenValues("Tony", "Montana"), u.ID)
	require.NoError(t, err)

	byPlate, err := store.Create(ctx, rbac.KindVehicle, vehicleValues("mia-001", "Ford", "Focus", "blue", owner.ID()), u.ID)
	require.NoError(t, err)
	byMake, err := store.Create(ctx, rbac.KindVehicle, vehicleValues("XYZ-1", "Miata", "MX5", "red", owner.ID()), u.ID)
	require.NoError(t, err)
	byColor, err := store.Create(ctx, rbac.KindVehicle, vehicleValues("XYZ-2", "BMW", "M3", "Miami Blue", owner.ID()), u.ID)
	require.NoError(t, err)

	vinValues := vehicleValues("XYZ-3", "Audi", "A4", "black", owner.ID())
	vinValues["vin"] = "1HGCMIA0000"
	byVIN, err := store.Create(ctx, rbac.KindVehicle, vinValues, u.ID)
	require.NoError(t, err)

	_, err = store.Create(ctx, rbac.KindVehicle, vehicleValues("QQQ-9", "Honda", "Civic", "white", owner.ID()), u.ID)
	require.NoError(t, err)

	got, err := store.Search(ctx, rbac.KindVehicle, "MIA")
	require.NoError(t, err)

	ids := make([]int64, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID())
	}
	assert.ElementsMatch(t, []int64{byPlate.ID(), byMake.ID(), byColor.ID(), byVIN.ID()}, ids)

	none, err := store.Search(ctx, rbac.KindVehicle, "zzz-nothing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSearch_EscapesWildcards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)

	_, err := store.Create(ctx, rbac.KindCitizen, citizenValues("Percy", "Jackson"), u.ID)
	require.NoError(t, err)
	pct, err := store.Create(ctx, rbac.KindCitizen, citizenValues("100%", "Real"), u.ID)
	require.NoError(t, err)

	got, err := store.Search(ctx, rbac.KindCitizen, "%")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pct.ID(), got[0].ID())

	got, err = store.Search(ctx, rbac.KindCitizen, "_")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdate_RefreshesStampsAndIsPartial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	creator := seedUser(t, store, "dmv1", auth.RoleDMV)
	editor := seedUser(t, store, "mpd1", auth.RoleMPD)

	rec, err := store.Create(ctx, rbac.KindCitizen, citizenValues("Tony", "Montana"), creator.ID)
	require.NoError(t, err)

	updated, err := store.Update(ctx, rbac.KindCitizen, rec.ID(), records.Values{"isWanted": true, "wantedReason": "tax evasion"}, editor.ID)
	require.NoError(t, err)

	assert.Equal(t, true, updated["isWanted"])
	assert.Equal(t, "tax evasion", updated["wantedReason"])
	assert.Equal(t, "Tony", updated["firstName"])
	assert.Equal(t, rec["citizenId"], updated["citizenId"])
	assert.Equal(t, creator.ID, updated["createdBy"])
	assert.Equal(t, editor.ID, updated["updatedBy"])
	assert.Equal(t, rec["createdAt"], updated["createdAt"])
	assert.True(t, updated["updatedAt"].(time.Time).After(rec["updatedAt"].(time.Time)))

	wanted, err := store.Wanted(ctx)
	require.NoError(t, err)
	require.Len(t, wanted, 1)
	assert.Equal(t, rec.ID(), wanted[0].ID())
}

func TestUpdate_MissingCreatesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)

	_, err := store.Update(ctx, rbac.KindCitizen, 999, records.Values{"firstName": "Ghost"}, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx, rbac.KindCitizen)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_ConstraintErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)
	owner, err := store.Create(ctx, rbac.KindCitizen, citizenValues("Tony", "Montana"), u.ID)
	require.NoError(t, err)

	_, err = store.Create(ctx, rbac.KindVehicle, vehicleValues("DUP-1", "Ford", "F150", "red", owner.ID()), u.ID)
	require.NoError(t, err)

	_, err = store.Create(ctx, rbac.KindVehicle, vehicleValues("DUP-1", "Ford", "F150", "red", owner.ID()), u.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = store.Create(ctx, rbac.KindVehicle, vehicleValues("NEW-1", "Ford", "F150", "red", 9999), u.ID)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestOpen_SQLiteEnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:storage_fk_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	store, err := Open(ctx, Config{Driver: "sqlite3", URL: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate(ctx)
	require.NoError(t, err)

	var enabled int
	require.NoError(t, store.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	u := seedUser(t, store, "dmv1", auth.RoleDMV)
	_, err = store.Create(ctx, rbac.KindVehicle, vehicleValues("GHOST-1", "Ford", "F150", "red", 4242), u.ID)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"records.db", "records.db?_foreign_keys=on"},
		{"file:records.db?mode=rwc", "file:records.db?mode=rwc&_foreign_keys=on"},
		{"file:records.db?_foreign_keys=off", "file:records.db?_foreign_keys=off"},
		{"file:records.db?_fk=1", "file:records.db?_fk=1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteDSN(tt.in))
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "it", auth.RoleIT)
	owner, err := store.Create(ctx, rbac.KindCitizen, citizenValues("Tony", "Montana"), u.ID)
	require.NoError(t, err)
	car, err := store.Create(ctx, rbac.KindVehicle, vehicleValues("DEL-1", "Ford", "F150", "red", owner.ID()), u.ID)
	require.NoError(t, err)

	// Still referenced by the vehicle
	_, err = store.Delete(ctx, rbac.KindCitizen, owner.ID())
	assert.ErrorIs(t, err, ErrConflict)

	deleted, err := store.Delete(ctx, rbac.KindVehicle, car.ID())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, rbac.KindVehicle, car.ID())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListByCitizen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "it", auth.RoleIT)
	a, err := store.Create(ctx, rbac.KindCitizen, citizenValues("A", "Owner"), u.ID)
	require.NoError(t, err)
	b, err := store.Create(ctx, rbac.KindCitizen, citizenValues("B", "Owner"), u.ID)
	require.NoError(t, err)

	carA, err := store.Create(ctx, rbac.KindVehicle, vehicleValues("A-1", "Ford", "F150", "red", a.ID()), u.ID)
	require.NoError(t, err)
	_, err = store.Create(ctx, rbac.KindVehicle, vehicleValues("B-1", "Ford", "F150", "red", b.ID()), u.ID)
	require.NoError(t, err)

	got, err := store.ListByCitizen(ctx, rbac.KindVehicle, a.ID())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, carA.ID(), got[0].ID())

	_, err = store.ListByCitizen(ctx, rbac.KindCitizen, a.ID())
	assert.Error(t, err)
}

func TestPermit_IssuedAtStamped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "dmv1", auth.RoleDMV)
	c, err := store.Create(ctx, rbac.KindCitizen, citizenValues("A", "Owner"), u.ID)
	require.NoError(t, err)

	values, err := records.MustSchema(rbac.KindPermit).Validate(map[string]interface{}{
		"permitNumber": "P-1",
		"permitType":   "weapon",
		"citizenId":    c.ID(),
	}, records.ModeCreate)
	require.NoError(t, err)

	rec, err := store.Create(ctx, rbac.KindPermit, values, u.ID)
	require.NoError(t, err)
	assert.False(t, rec["issuedAt"].(time.Time).IsZero())
	assert.Equal(t, true, rec["isValid"])
}

type recorderCall struct {
	kind, op string
	failed   bool
}

type fakeRecorder struct {
	calls []recorderCall
}

func (f *fakeRecorder) RecordStoreOperation(kind, op string, _ time.Duration, err error) {
	f.calls = append(f.calls, recorderCall{kind, op, err != nil})
}

func TestRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	store := newTestStore(t, WithRecorder(rec))

	_, _ = store.Get(context.Background(), rbac.KindVehicle, 1)

	require.NotEmpty(t, rec.calls)
	last := rec.calls[len(rec.calls)-1]
	assert.Equal(t, recorderCall{"Vehicle", "get", true}, last)
}

func TestDeadlineExceeded(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := store.List(ctx, rbac.KindCitizen)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
