package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewGCCommand creates the gc command.
func NewGCCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete events no region can reach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			removed, err := ws.GC(ctx)
			if err != nil {
				return failure("gc failed", err)
			}

			out := opts.formatter(cmd)
			for _, id := range removed {
				out.VerboseLog("removed %s", id)
			}
			return out.Emit(map[string]any{"removed": removed, "kept": ws.Store().Len()},
				fmt.Sprintf("removed %d event(s), %d kept", len(removed), ws.Store().Len()))
		},
	}
}
