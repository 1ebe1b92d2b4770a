// Package cli implements the bizstore command line: the local API server and
// direct record, master data and identifier commands against the same store.
package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/stevemurr/bizstore/config"
	"github.com/stevemurr/bizstore/facade"
	"github.com/stevemurr/bizstore/identity"
	"github.com/stevemurr/bizstore/logging"
	"github.com/stevemurr/bizstore/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	User       string
	ConfigPath string
	Backend    string
	DataDir    string

	cfg *config.Config

	// extra options for every facade opened by a command; tests pin the clock here
	storeOpts []facade.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bizstore CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand()
}

func newRootCommand(storeOpts ...facade.Option) *cobra.Command {
	opts := &RootOptions{storeOpts: storeOpts}

	cmd := &cobra.Command{
		Use:   "bizstore",
		Short: "Local record store for inventory, customers, invoices and purchases",
		Long: `bizstore keeps business records (customers, invoices, purchases, old stock,
bookings) and shared master lists (categories, suppliers) on the local machine.

Records in user-scoped collections need --user; master data is shared.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "act as this signed-in user id")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", fmt.Sprintf("store backend %v", store.Backends))
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding the store files")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGenIDCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))
	cmd.AddCommand(NewMastersCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// loadConfig layers defaults, the config file, the environment and finally
// the flags the user actually set.
func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = o.Backend
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = o.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.cfg = cfg
	return nil
}

func (o *RootOptions) identity() identity.Identity {
	return identity.Identity{UserID: o.User}
}

func (o *RootOptions) logger(cmd *cobra.Command) (logging.Logger, error) {
	log, err := logging.New(cmd.ErrOrStderr(), o.cfg.LogFormat, o.cfg.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "logger", err)
	}
	return log, nil
}

// openStore opens the configured backend behind a facade. The caller closes it.
func (o *RootOptions) openStore(cmd *cobra.Command) (*facade.Store, error) {
	log, err := o.logger(cmd)
	if err != nil {
		return nil, err
	}
	backend, err := store.New(o.cfg.Backend, o.cfg.DataDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	fopts := []facade.Option{
		facade.WithLogger(log),
		facade.WithMasterPollInterval(o.cfg.MasterPoll),
	}
	return facade.New(backend, append(fopts, o.storeOpts...)...), nil
}

// withSession runs fn against a session for --user and closes the store after.
func (o *RootOptions) withSession(cmd *cobra.Command, fn func(*facade.Session) error) error {
	s, err := o.openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s.Session(o.identity()))
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// usageArgs turns argument count errors into command errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "usage", err)
		}
		return nil
	}
}

// Execute runs the CLI with args and returns the process exit code. Failures
// are written to stderr, or to stdout as a JSON envelope with --format json.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, newRootCommand(), args, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	p := &Printer{Writer: stderr}
	if format, _ := cmd.PersistentFlags().GetString("format"); format == "json" {
		p = &Printer{Format: format, Writer: stdout}
	}
	p.Error(err)
	return GetExitCode(err)
}
