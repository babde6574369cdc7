package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamirp/cityrecords/pkg/auth"
)

func TestValidateUser_Create(t *testing.T) {
	in, err := ValidateUser(map[string]interface{}{
		"username":   " officer ",
		"password":   "hunter22",
		"role":       "MPD",
		"department": "MPD",
	}, ModeCreate)
	require.NoError(t, err)

	assert.Equal(t, "officer", *in.Username)
	assert.Equal(t, "hunter22", *in.Password)
	assert.Equal(t, auth.RoleMPD, *in.Role)
	assert.Equal(t, "MPD", *in.Department)
	assert.Nil(t, in.IsActive)
}

func TestValidateUser_Rejections(t *testing.T) {
	_, err := ValidateUser(map[string]interface{}{
		"username": "",
		"password": "abc",
		"role":     "mpd",
		"isActive": "sometimes",
	}, ModeCreate)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["username"])
	assert.Equal(t, "must be at least 6 characters", verr.Fields["password"])
	assert.Contains(t, verr.Fields["role"], "Director_MPD")
	assert.Equal(t, "must be a boolean", verr.Fields["isActive"])
}

func TestValidateUser_UpdatePartial(t *testing.T) {
	in, err := ValidateUser(map[string]interface{}{"isActive": false, "department": nil}, ModeUpdate)
	require.NoError(t, err)

	assert.Nil(t, in.Username)
	assert.Nil(t, in.Password)
	assert.Nil(t, in.Role)
	assert.True(t, in.DepartmentSet)
	assert.Nil(t, in.Department)
	require.NotNil(t, in.IsActive)
	assert.False(t, *in.IsActive)
}

func TestValidateUser_CreateRequiresFields(t *testing.T) {
	_, err := ValidateUser(map[string]interface{}{}, ModeCreate)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}
