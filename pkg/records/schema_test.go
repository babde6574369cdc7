package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamirp/cityrecords/pkg/rbac"
)

func TestSchemaFor_AllRecordKinds(t *testing.T) {
	for _, kind := range rbac.AllKinds {
		s, ok := SchemaFor(kind)
		if kind == rbac.KindUser {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok, kind)
		assert.Equal(t, kind, s.Kind)
		assert.NotEmpty(t, s.Table)
		assert.NotEmpty(t, s.Search, kind)
		assert.Len(t, s.SearchColumns(), len(s.Search), "every search field must resolve for %s", kind)
	}
}

func TestVehicleSearchColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"license_plate", "make", "model", "color", "vin"},
		MustSchema(rbac.KindVehicle).SearchColumns())
}

func TestCitizenChildren(t *testing.T) {
	assert.Equal(t, []rbac.Kind{
		rbac.KindVehicle,
		rbac.KindDriverLicense,
		rbac.KindBusiness,
		rbac.KindProperty,
		rbac.KindPermit,
		rbac.KindCriminalRecord,
	}, CitizenChildren())

	f, ok := MustSchema(rbac.KindVehicle).RefField(rbac.KindCitizen)
	require.True(t, ok)
	assert.Equal(t, "owner_id", f.Column)

	f, ok = MustSchema(rbac.KindCriminalRecord).RefField(rbac.KindCitizen)
	require.True(t, ok)
	assert.Equal(t, "citizen_id", f.Column)
}

func TestMustSchema_PanicsOnUser(t *testing.T) {
	assert.Panics(t, func() { MustSchema(rbac.KindUser) })
}

func TestCitizenID(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := NewCitizenID()
		require.NoError(t, err)
		assert.True(t, IsCitizenID(id), id)
	}
	assert.False(t, IsCitizenID("MIA-12345"))
	assert.False(t, IsCitizenID("mia-123456"))
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, int64(9), Record{"id": int64(9)}.ID())
	assert.Equal(t, int64(0), Record{}.ID())
}
