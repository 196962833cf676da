package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/namedb/internal/dispatch"
	"github.com/roach88/namedb/internal/store"
)

// ListResult is the JSON payload of list.
type ListResult struct {
	Records []store.Record `json:"records"`
}

// AddResult is the JSON payload of add.
type AddResult struct {
	Records []store.Record `json:"records"`
	Skipped int            `json:"skipped"`
}

// ChangeResult is the JSON payload of update and delete.
type ChangeResult struct {
	ID      int64  `json:"id"`
	Name    string `json:"name,omitempty"`
	Changed bool   `json:"changed"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all records in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, runList)
		},
	}
}

func runList(ctx context.Context, s *session, out *OutputFormatter) error {
	f, err := s.client.List()
	if err != nil {
		return fail(out, err)
	}
	records, err := dispatch.Await[[]store.Record](ctx, f)
	if err != nil {
		return fail(out, err)
	}

	if len(records) == 0 {
		return out.Success("no records", ListResult{Records: records})
	}
	return out.Success(formatRecords(records), ListResult{Records: records})
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Each bool
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a record",
		Long: `Add a record. The arguments are joined with spaces into one name.

With --each, every argument becomes its own record; records are written in
argument order. Blank names are skipped.

Example:
  namedb add Buy milk
  namedb add --each "Buy milk" "Call Bob"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := []string{strings.Join(args, " ")}
			if opts.Each {
				names = args
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				return runAdd(ctx, s, out, names)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Each, "each", false, "add each argument as a separate record")

	return cmd
}

func runAdd(ctx context.Context, s *session, out *OutputFormatter, names []string) error {
	// Issue every create before waiting; the client preserves issue order.
	futures := make([]*dispatch.Future, 0, len(names))
	for _, name := range names {
		f, err := s.client.Create(name)
		if err != nil {
			return fail(out, err)
		}
		futures = append(futures, f)
	}

	result := AddResult{Records: []store.Record{}}
	for _, f := range futures {
		created, err := dispatch.Await[dispatch.Created](ctx, f)
		if err != nil {
			return fail(out, err)
		}
		if !created.OK {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, created.Record)
	}

	var text strings.Builder
	for _, rec := range result.Records {
		fmt.Fprintf(&text, "added %d\t%s\n", rec.ID, rec.Name)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(&text, "skipped %d blank name(s)\n", result.Skipped)
	}
	return out.Success(text.String(), result)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <name...>",
		Short: "Rename the record with the given id",
		Long: `Rename the record with the given id. Exits 1 when no record has that id.
A blank new name changes nothing.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			id, err := parseID(args[0])
			if err != nil {
				return badArgs(out, "%v", err)
			}
			name := strings.Join(args[1:], " ")
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				return runUpdate(ctx, s, out, id, name)
			})
		},
	}
}

func runUpdate(ctx context.Context, s *session, out *OutputFormatter, id int64, name string) error {
	f, err := s.client.Update(id, name)
	if err != nil {
		return fail(out, err)
	}
	changed, err := dispatch.Await[bool](ctx, f)
	if err != nil {
		return fail(out, err)
	}
	if !changed {
		if strings.TrimSpace(name) == "" {
			return out.Success("blank name, nothing changed", ChangeResult{ID: id})
		}
		return noChange(out, id)
	}
	return out.Success(fmt.Sprintf("updated %d", id), ChangeResult{ID: id, Name: name, Changed: true})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete the record with the given id",
		Long:  `Delete the record with the given id. Exits 1 when no record has that id.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			id, err := parseID(args[0])
			if err != nil {
				return badArgs(out, "%v", err)
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				return runDelete(ctx, s, out, id)
			})
		},
	}
}

func runDelete(ctx context.Context, s *session, out *OutputFormatter, id int64) error {
	f, err := s.client.Delete(id)
	if err != nil {
		return fail(out, err)
	}
	removed, err := dispatch.Await[bool](ctx, f)
	if err != nil {
		return fail(out, err)
	}
	if !removed {
		return noChange(out, id)
	}
	return out.Success(fmt.Sprintf("deleted %d", id), ChangeResult{ID: id, Changed: true})
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be an integer", arg)
	}
	return id, nil
}

func formatRecords(records []store.Record) string {
	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "%d\t%s\n", rec.ID, rec.Name)
	}
	return b.String()
}
