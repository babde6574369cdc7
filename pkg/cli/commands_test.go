package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestMigrateCommand(t *testing.T) {
	useTestDatabase(t)

	out, err := execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 001 Create users table")

	out, err = execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	out, err = execute(t, "", "migrate", "--format", "json")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Empty(t, data["applied"])
	assert.NotZero(t, data["current"])
}

func TestUserCreateAndList(t *testing.T) {
	useTestDatabase(t)
	_, err := execute(t, "", "migrate")
	require.NoError(t, err)

	out, err := execute(t, "s3cret-pass\n", "user", "create", "--username", "admin", "--role", "IT", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "created user admin")

	out, err = execute(t, "", "user", "create", "-u", "chief", "-r", "Director_MPD", "--department", "Patrol", "-p", "changeme", "--inactive")
	require.NoError(t, err)
	assert.Contains(t, out, "role Director_MPD")

	out, err = execute(t, "", "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "Patrol")

	out, err = execute(t, "", "user", "list", "--format", "json")
	require.NoError(t, err)
	users := decodeResponse(t, out).Data.([]interface{})
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotContains(t, u, "passwordHash")
	}

	_, err = execute(t, "", "user", "create", "-u", "admin", "-r", "IT", "-p", "another-one")
	require.Error(t, err, "usernames are unique")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestUserCreateRejectsBadInput(t *testing.T) {
	useTestDatabase(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "unknown role", args: []string{"-u", "x", "-r", "Sheriff", "-p", "longenough"}},
		{name: "short password", args: []string{"-u", "x", "-r", "IT", "-p", "123"}},
		{name: "no password", args: []string{"-u", "x", "-r", "IT"}},
		{name: "empty stdin", args: []string{"-u", "x", "-r", "IT", "--password-stdin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"user", "create"}, tt.args...)
			_, err := execute(t, tt.stdin, args...)
			require.Error(t, err)
			assert.Equal(t, ExitConfigError, GetExitCode(err))
		})
	}
}

func TestUserCreateRequiresFlags(t *testing.T) {
	_, err := execute(t, "", "user", "create", "--role", "IT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func TestPolicyCommand(t *testing.T) {
	out, err := execute(t, "", "policy")
	require.NoError(t, err)
	assert.Contains(t, out, "| Kind |")
	assert.Contains(t, out, "| CriminalRecord |")

	out, err = execute(t, "", "policy", "--format", "json")
	require.NoError(t, err)
	table := decodeResponse(t, out).Data.(map[string]interface{})

	citizen := table["Citizen"].(map[string]interface{})
	assert.Equal(t, []interface{}{"ANY"}, citizen["ListAll"])
	assert.Equal(t, []interface{}{"IT"}, citizen["Delete"])

	criminal := table["CriminalRecord"].(map[string]interface{})
	assert.Empty(t, criminal["Delete"])
	assert.Contains(t, criminal["Create"], "MPD")
	assert.NotContains(t, criminal["Create"], "DMV")
}
