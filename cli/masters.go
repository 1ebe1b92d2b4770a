package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/bizstore/entity"
	"github.com/stevemurr/bizstore/facade"
	"github.com/stevemurr/bizstore/masters"
)

func NewMastersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masters",
		Short: "Read and extend the shared lookup lists",
		Long: `Master data is a set of tagged lookup lists (category, supplier, unit, ...)
read by selection widgets. Values are unique per type, ignoring case.`,
	}

	cmd.AddCommand(newMastersListCommand(opts))
	cmd.AddCommand(newMastersAddCommand(opts))
	cmd.AddCommand(newMastersTypesCommand(opts))
	cmd.AddCommand(newMastersWatchCommand(opts))

	return cmd
}

func newMastersListCommand(opts *RootOptions) *cobra.Command {
	var fallback []string

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List the entries of one type",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				entries, err := ss.GetMastersByType(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries = masters.WithFallback(entries, masters.FallbackValues(args[0], fallback...))
				return opts.printer(cmd).Masters(entries)
			})
		},
	}

	cmd.Flags().StringSliceVar(&fallback, "fallback", nil, "values to show when the type has no entries")

	return cmd
}

func newMastersAddCommand(opts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "add <type> <value>",
		Short: "Add a value; an existing equal value is returned instead",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				e := entity.MasterEntry{Type: args[0], Value: args[1]}
				e.ID = id
				saved, err := ss.AddMaster(cmd.Context(), e)
				if err != nil {
					return err
				}
				return opts.printer(cmd).Masters([]entity.MasterEntry{saved})
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "entry id, generated when empty")

	return cmd
}

func newMastersTypesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the types that have entries",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				types, err := ss.MasterTypes(cmd.Context())
				if err != nil {
					return err
				}
				return opts.printer(cmd).Lines(types)
			})
		},
	}
}

func newMastersWatchCommand(opts *RootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <type>",
		Short: "Print the entries of a type every time they are refreshed",
		Long: `Print the entries of a type, then again on every refresh until interrupted.
Refreshes happen every --interval (default from config, 30s).`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := opts.printer(cmd)
			return opts.withSession(cmd, func(ss *facade.Session) error {
				var printErr error
				err := ss.WatchMasters(ctx, args[0], interval, func(entries []entity.MasterEntry) {
					if printErr == nil {
						printErr = p.Masters(entries)
					}
				})
				if printErr != nil {
					return printErr
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval (0 uses the configured default)")

	return cmd
}
