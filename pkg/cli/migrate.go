package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miamirp/cityrecords/pkg/config"
	"github.com/miamirp/cityrecords/pkg/storage"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every pending schema migration to the configured database.

Migrations are idempotent; running the command on an up-to-date schema
applies nothing.

Example:
  cityrecords migrate
  CITYRECORDS_DB_DRIVER=sqlite3 CITYRECORDS_DATABASE_URL=file:records.db?_foreign_keys=on cityrecords migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, rootOpts)
		},
	}
}

type migrateOutput struct {
	Applied []int `json:"applied"`
	Current int   `json:"current"`
}

func runMigrate(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Migrate(cmd.Context())
	if err != nil {
		return WrapExitError(ExitStorageError, "migration failed", err)
	}

	out := migrateOutput{Applied: make([]int, 0, len(result.Applied)), Current: result.Current}
	var b strings.Builder
	for _, m := range result.Applied {
		out.Applied = append(out.Applied, m.Version)
		fmt.Fprintf(&b, "applied %03d %s\n", m.Version, m.Description)
	}
	if len(result.Applied) == 0 {
		b.WriteString("schema is up to date\n")
	}
	fmt.Fprintf(&b, "schema version %d", result.Current)

	return opts.formatter(cmd).Result(b.String(), out)
}

// openStore connects to the configured database.
func openStore(ctx context.Context, cfg *config.Config, opts ...storage.Option) (*storage.Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.Open(ctx, cfg.Database, opts...)
	if err != nil {
		return nil, WrapExitError(ExitStorageError, "failed to open database", err)
	}
	return store, nil
}
