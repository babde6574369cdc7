package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestDatabase points the configuration at a fresh SQLite file.
func useTestDatabase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	url := "file:" + filepath.Join(dir, "records.db") + "?_foreign_keys=on"

	t.Setenv("CITYRECORDS_CONFIG_FILE", "")
	t.Setenv("CITYRECORDS_DB_DRIVER", "sqlite3")
	t.Setenv("CITYRECORDS_DATABASE_URL", url)
	t.Setenv("CITYRECORDS_SESSION_BACKEND", "memory")
	t.Setenv("CITYRECORDS_BCRYPT_COST", "4")
	t.Setenv("CITYRECORDS_LOG_LEVEL", "error")
	return url
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cityrecords", cmd.Use)
	assert.Equal(t, Version, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"migrate"},
		{"user"},
		{"user", "create"},
		{"user", "list"},
		{"policy"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	migrateFlag := serveCmd.Flags().Lookup("migrate")
	require.NotNil(t, migrateFlag)
	assert.Equal(t, "false", migrateFlag.DefValue)
}

func TestInvalidGlobalFlags(t *testing.T) {
	_, err := execute(t, "", "policy", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	_, err = execute(t, "", "policy", "--log-level", "loud")
	assert.Error(t, err)
}

func TestConfigErrors(t *testing.T) {
	useTestDatabase(t)
	t.Setenv("CITYRECORDS_DB_DRIVER", "mysql")

	_, err := execute(t, "", "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, err = execute(t, "", "migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitStorageError, GetExitCode(WrapExitError(ExitStorageError, "db", errors.New("down"))))

	wrapped := WrapExitError(ExitConfigError, "bad config", errors.New("port"))
	assert.Equal(t, "bad config: port", wrapped.Error())
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
