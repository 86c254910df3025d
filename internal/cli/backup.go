package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/persist"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write a full backup of every event and region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			b := ws.Export()
			if err := persist.WriteBackup(args[0], ws.Collection()); err != nil {
				return WrapExitError(ExitCommandError, "failed to write backup", err)
			}
			return opts.formatter(cmd).Emit(
				map[string]any{"path": args[0], "nodes": len(b.Nodes), "regions": len(b.Regions)},
				fmt.Sprintf("exported %d event(s) and %d region(s) to %s", len(b.Nodes), len(b.Regions), args[0]))
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load a backup; its regions replace same-named ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := persist.ReadBackup(args[0])
			if err != nil {
				return failure("failed to read backup", err)
			}

			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.Import(ctx, b); err != nil {
				return failure("failed to import backup", err)
			}
			return opts.formatter(cmd).Emit(
				map[string]any{"path": args[0], "nodes": len(b.Nodes), "regions": len(b.Regions)},
				fmt.Sprintf("imported %d event(s) and %d region(s) from %s", len(b.Nodes), len(b.Regions), args[0]))
		},
	}
}
