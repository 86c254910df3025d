package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/persist"
)

// LogOptions holds flags for the log commands.
type LogOptions struct {
	*RootOptions
	Output string
}

// NewLogCommand creates the log command group for JSONL event logs.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Export and import JSONL event logs",
	}
	cmd.AddCommand(newLogExportCommand(rootOpts))
	cmd.AddCommand(newLogImportCommand(rootOpts))
	return cmd
}

func newLogExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export REGION",
		Short: "Write a region's history as JSON lines",
		Long: `Export writes one record per event of REGION's history, parents first.
Each record carries its id and parents, so importing it rebuilds the exact
graph. Output goes to stdout unless -o is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			records, err := ws.ExportLog(args[0])
			if err != nil {
				return failure("failed to export log", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if opts.Output != "" {
				f, err := os.Create(opts.Output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create log file", err)
				}
				defer f.Close()
				w = f
			}
			if err := persist.WriteLog(w, records); err != nil {
				return WrapExitError(ExitCommandError, "failed to write log", err)
			}
			if opts.Output != "" {
				return opts.formatter(cmd).Emit(
					map[string]any{"region": args[0], "records": len(records), "path": opts.Output},
					fmt.Sprintf("wrote %d record(s) to %s", len(records), opts.Output))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newLogImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Rebuild events from a JSONL log",
		Long: `Import reads JSON lines and adds their events to the graph. Records with
an id must hash to it. Records without id or parents chain onto the previous
record of the same agent. Each agent's last event becomes the head of a region
named after the agent; an existing region absorbs it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open log", err)
			}
			defer f.Close()

			records, err := persist.ReadLog(f)
			if err != nil {
				return failure("failed to read log", err)
			}

			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			regions, err := ws.ImportLog(ctx, records)
			if err != nil {
				return failure("failed to import log", err)
			}
			return opts.formatter(cmd).Emit(
				map[string]any{"records": len(records), "regions": regions},
				fmt.Sprintf("imported %d record(s) into %d region(s)", len(records), len(regions)))
		},
	}
}
