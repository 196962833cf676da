package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/namedb/internal/dispatch"
	"github.com/roach88/namedb/internal/store"
)

// TransferResult is the JSON payload of export and import.
type TransferResult struct {
	Database string `json:"database"`
	Path     string `json:"path"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Copy the database file to path",
		Long: `Copy the database file, byte for byte, to path. An existing file at path is
replaced only once the copy is complete.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				return runExport(ctx, s, out, args[0])
			})
		},
	}
}

func runExport(ctx context.Context, s *session, out *OutputFormatter, path string) error {
	f, err := s.client.Export(store.FileDestination(path))
	if err != nil {
		return fail(out, err)
	}
	if _, err := f.Wait(ctx); err != nil {
		return fail(out, err)
	}
	return out.Success(
		fmt.Sprintf("exported %s to %s", s.cfg.Database, path),
		TransferResult{Database: s.cfg.Database, Path: path},
	)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Replace the database file with the file at path",
		Long: `Replace the database file with a copy of the file at path, typically one
written by export. The current contents are kept if path is not a usable
database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session, out *OutputFormatter) error {
				return runImport(ctx, s, out, args[0])
			})
		},
	}
}

func runImport(ctx context.Context, s *session, out *OutputFormatter, path string) error {
	f, err := s.client.Import(store.FileSource(path))
	if err != nil {
		return fail(out, err)
	}
	if _, err := dispatch.Await[*store.Handle](ctx, f); err != nil {
		return fail(out, err)
	}
	return out.Success(
		fmt.Sprintf("imported %s into %s", path, s.cfg.Database),
		TransferResult{Database: s.cfg.Database, Path: path},
	)
}
