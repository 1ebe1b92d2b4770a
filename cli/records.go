package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stevemurr/bizstore/collection"
	"github.com/stevemurr/bizstore/facade"
)

// RecordOptions holds flags for add and update.
type RecordOptions struct {
	*RootOptions
	Data string
	ID   string
}

// readDocument parses --data, or stdin when it is "-".
func (o *RecordOptions) readDocument(cmd *cobra.Command) (collection.Document, error) {
	raw := []byte(o.Data)
	if o.Data == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read stdin", err)
		}
		raw = b
	}
	var doc collection.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --data JSON", err)
	}
	if doc == nil {
		return nil, NewExitError(ExitCommandError, "--data must be a JSON object")
	}
	return doc, nil
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <collection>",
		Short: "Insert or replace a record",
		Long: `Insert or replace a record. The record is keyed by its "id" field; a record
already stored under that id is overwritten.

Use --id to set the id, or --generate to assign a fresh one from --prefix.

Example:
  bizstore add customers --user alice --generate --prefix CUST --data '{"name":"Acme"}'`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := opts.readDocument(cmd)
			if err != nil {
				return err
			}
			generate, _ := cmd.Flags().GetBool("generate")
			prefix, _ := cmd.Flags().GetString("prefix")
			return opts.withSession(cmd, func(ss *facade.Session) error {
				switch {
				case opts.ID != "":
					doc[collection.FieldID] = opts.ID
				case generate:
					doc[collection.FieldID] = ss.GenerateID(prefix)
				}
				saved, err := ss.Add(cmd.Context(), args[0], doc)
				if err != nil {
					return err
				}
				return opts.printer(cmd).Record(saved)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "{}", `record as a JSON object, or "-" for stdin`)
	cmd.Flags().StringVar(&opts.ID, "id", "", "record id, overrides the id in --data")
	cmd.Flags().Bool("generate", false, "assign a freshly generated id")
	cmd.Flags().String("prefix", "ID", "id prefix used with --generate")

	return cmd
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <collection> <id>",
		Short: "Change fields of an existing record",
		Long: `Merge the fields in --data into an existing record. Fields set to null are
removed. id and createdAt never change; updatedAt is refreshed.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := opts.readDocument(cmd)
			if err != nil {
				return err
			}
			patch[collection.FieldID] = args[1]
			return opts.withSession(cmd, func(ss *facade.Session) error {
				saved, err := ss.Update(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return opts.printer(cmd).Record(saved)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "{}", `changed fields as a JSON object, or "-" for stdin`)

	return cmd
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "List every record of a collection",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				docs, err := ss.GetAll(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.printer(cmd).Records(docs)
			})
		},
	}
}

func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Show one record",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				doc, err := ss.Get(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return opts.printer(cmd).Record(doc)
			})
		},
	}
}

func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <collection> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record; deleting a missing id succeeds",
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				if err := ss.Remove(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				p := opts.printer(cmd)
				if p.json() {
					return p.Success(map[string]string{"collection": args[0], "id": args[1]})
				}
				return p.Success(fmt.Sprintf("removed %s/%s", args[0], args[1]))
			})
		},
	}
}

func NewCollectionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the non-empty collections visible to --user",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ss *facade.Session) error {
				names, err := ss.Collections(cmd.Context())
				if err != nil {
					return err
				}
				return opts.printer(cmd).Lines(names)
			})
		},
	}
}

func NewGenIDCommand(opts *RootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "genid <prefix>",
		Short: "Print freshly generated record ids",
		Long: `Print freshly generated record ids of the form PREFIX-SUFFIX.

Example:
  bizstore genid CUST -n 3`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return NewExitError(ExitCommandError, fmt.Sprintf("count must be positive, got %d", count))
			}
			s, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ids := make([]string, count)
			for i := range ids {
				ids[i] = s.GenerateID(args[0])
			}
			return opts.printer(cmd).Lines(ids)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "how many ids to print")

	return cmd
}
