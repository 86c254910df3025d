package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/ir"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	FromLog bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay REGION",
		Short: "List a region's history in chronological order",
		Long: `Replay walks every event reachable from REGION's heads and prints them
parents first, ties broken by timestamp then id. With --log the region's
persisted event log is read from the database instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			var nodes []ir.EventNode
			if opts.FromLog {
				nodes, err = ws.Events(ctx, args[0])
			} else {
				r, rerr := ws.Region(args[0])
				if rerr == nil {
					nodes = r.Replay()
				}
				err = rerr
			}
			if err != nil {
				return failure("failed to replay region", err)
			}
			return opts.formatter(cmd).Emit(nodes, renderNodes(nodes))
		},
	}

	cmd.Flags().BoolVar(&opts.FromLog, "log", false, "read the persisted event log")
	return cmd
}

// NewPromptCommand creates the prompt command.
func NewPromptCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt REGION",
		Short: "Render a region's history as prompt lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			r, err := ws.Region(args[0])
			if err != nil {
				return failure("failed to render prompt", err)
			}
			prompt := r.ForPrompt()
			return opts.formatter(cmd).Emit(map[string]string{"region": r.Name(), "prompt": prompt}, prompt)
		},
	}
}

// renderNodes prints one "<short id> [OP] content" line per node.
func renderNodes(nodes []ir.EventNode) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = fmt.Sprintf("%s %s", ir.ShortID(n.ID), n.Line())
	}
	return strings.Join(lines, "\n")
}
