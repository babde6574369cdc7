package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/miamirp/cityrecords/pkg/config"
	"github.com/miamirp/cityrecords/pkg/observability"
)

// Version is stamped at build time with -ldflags "-X .../pkg/cli.Version=..."
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cityrecords CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "cityrecords",
		Short:   "City records - role-based record management",
		Long:    "Serves and administers the city records API: citizens, vehicles, licenses, businesses, properties, permits and criminal records.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.LogLevel != "" {
				if _, err := observability.ParseLogLevel(opts.LogLevel); err != nil {
					return err
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (default $"+config.EnvPrefix+"CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))

	return cmd
}

// loadConfig reads the configuration named by --config, falling back to the
// environment, and applies the --log-level override.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigFile != "" {
		cfg, err = config.Load(o.ConfigFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "failed to load configuration", err)
	}

	if o.LogLevel != "" {
		cfg.Observability.LogLevel = o.LogLevel
	}
	return cfg, nil
}

func (o *RootOptions) newLogger(cfg *config.Config, w io.Writer) *observability.Logger {
	return observability.NewLogger(cfg.Observability.Level(), w)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
