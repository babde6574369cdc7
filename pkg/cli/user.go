package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/records"
)

// UserOptions holds flags for the user commands.
type UserOptions struct {
	*RootOptions
	Username      string
	Role          string
	Department    string
	Password      string
	PasswordStdin bool
	Inactive      bool
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts directly in the database",
	}
	cmd.AddCommand(newUserCreateCommand(rootOpts))
	cmd.AddCommand(newUserListCommand(rootOpts))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an account without going through the API. This is how the first
IT account is bootstrapped on an empty database.

Example:
  cityrecords user create --username admin --role IT --password-stdin < secret.txt
  cityrecords user create --username chief --role Director_MPD --department Patrol --password changeme`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "login name (required)")
	cmd.Flags().StringVarP(&opts.Role, "role", "r", "", "role, e.g. IT, DMV, Director_MPD (required)")
	cmd.Flags().StringVar(&opts.Department, "department", "", "optional department label")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from the first line of stdin")
	cmd.Flags().BoolVar(&opts.Inactive, "inactive", false, "create the account deactivated")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runUserCreate(cmd *cobra.Command, opts *UserOptions) error {
	password := opts.Password
	if opts.PasswordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return WrapExitError(ExitConfigError, "failed to read password from stdin", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return NewExitError(ExitConfigError, "a password is required: use --password or --password-stdin")
	}

	payload := map[string]interface{}{
		"username": opts.Username,
		"password": password,
		"role":     opts.Role,
	}
	if opts.Department != "" {
		payload["department"] = opts.Department
	}
	input, err := records.ValidateUser(payload, records.ModeCreate)
	if err != nil {
		return WrapExitError(ExitConfigError, "invalid account", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	hash, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost).Hash(*input.Password)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	user := &auth.User{
		Username:     *input.Username,
		PasswordHash: hash,
		Role:         *input.Role,
		Department:   input.Department,
		IsActive:     !opts.Inactive,
	}
	if err := store.CreateUser(cmd.Context(), user); err != nil {
		return WrapExitError(ExitFailure, "failed to create user", err)
	}

	text := fmt.Sprintf("created user %s (id %d, role %s)", user.Username, user.ID, user.Role)
	return opts.formatter(cmd).Result(text, user)
}

func newUserListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list users", err)
			}

			return rootOpts.formatter(cmd).Result(userTable(users), users)
		},
	}
}

func userTable(users []*auth.User) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tDEPARTMENT\tACTIVE")
	for _, u := range users {
		dept := "-"
		if u.Department != nil {
			dept = *u.Department
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Role, dept, u.IsActive)
	}
	tw.Flush()
	return b.String()
}
