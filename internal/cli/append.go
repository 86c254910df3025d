package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/workspace"
)

// appendResult is the JSON shape of an append.
type appendResult struct {
	Region string `json:"region"`
	Op     ir.Op  `json:"op"`
	ID     string `json:"id"`
}

// NewAppendCommands creates observe, plan, effect and summarize.
func NewAppendCommands(opts *RootOptions) []*cobra.Command {
	return []*cobra.Command{
		newAppendCommand(opts, ir.OpObserve, "observe REGION TEXT", "Record an observation",
			cobra.ExactArgs(2),
			func(ctx context.Context, ws *workspace.Workspace, args []string) (string, error) {
				return ws.Observe(ctx, args[0], args[1])
			}),
		newAppendCommand(opts, ir.OpPlan, "plan REGION TEXT", "Record a plan step",
			cobra.ExactArgs(2),
			func(ctx context.Context, ws *workspace.Workspace, args []string) (string, error) {
				return ws.Plan(ctx, args[0], args[1])
			}),
		newAppendCommand(opts, ir.OpEffect, "effect REGION TOOL RESULT", "Record a tool call and its result",
			cobra.ExactArgs(3),
			func(ctx context.Context, ws *workspace.Workspace, args []string) (string, error) {
				return ws.Effect(ctx, args[0], args[1], args[2])
			}),
		newAppendCommand(opts, ir.OpSummarize, "summarize REGION TEXT", "Record a summary",
			cobra.ExactArgs(2),
			func(ctx context.Context, ws *workspace.Workspace, args []string) (string, error) {
				return ws.Summarize(ctx, args[0], args[1])
			}),
	}
}

type appendFunc func(ctx context.Context, ws *workspace.Workspace, args []string) (string, error)

func newAppendCommand(opts *RootOptions, op ir.Op, use, short string, args cobra.PositionalArgs, fn appendFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			id, err := fn(ctx, ws, args)
			if err != nil {
				return failure("failed to append "+string(op), err)
			}
			return opts.formatter(cmd).Emit(appendResult{Region: args[0], Op: op, ID: id}, id)
		},
	}
}
