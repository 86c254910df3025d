package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/region"
)

// NewForkCommand creates the fork command.
func NewForkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fork SOURCE [NAME]",
		Short: "Fork a region; later appends to either side stay separate",
		Long: `Fork creates a region sharing SOURCE's heads and metadata. No events are
copied. When NAME is omitted one is generated as SOURCE-<uuid>.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			f, err := ws.Fork(ctx, args[0], optionalArg(args, 1))
			if err != nil {
				return failure("failed to fork region", err)
			}
			return opts.formatter(cmd).Emit(viewOf(f), f.Name())
		},
	}
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge A B [NAME]",
		Short: "Merge two regions into a new one",
		Long: `Merge creates a region whose heads are the minimal cover of A's and B's
heads, so its history is the union of both. A's metadata wins on conflicts.
The next append to the merged region joins all heads. When NAME is omitted
one is generated as A+B-<uuid>.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			m, err := ws.Merge(ctx, args[0], args[1], optionalArg(args, 2))
			if err != nil {
				return failure("failed to merge regions", err)
			}
			return opts.formatter(cmd).Emit(viewOf(m), m.Name())
		},
	}
}

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Common bool
}

// diffResult is the JSON shape of a diff.
type diffResult struct {
	Ahead  []ir.EventNode `json:"ahead"`
	Behind []ir.EventNode `json:"behind"`
	Common []ir.EventNode `json:"common,omitempty"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff A B",
		Short: "Show events reachable from one region but not the other",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			a, err := ws.Region(args[0])
			if err != nil {
				return failure("failed to diff", err)
			}
			b, err := ws.Region(args[1])
			if err != nil {
				return failure("failed to diff", err)
			}

			res := diffResult{Ahead: a.Ahead(b), Behind: a.Behind(b)}
			if opts.Common {
				res.Common = region.Common(a, b)
			}

			var text strings.Builder
			writeSection(&text, fmt.Sprintf("%s not in %s", a.Name(), b.Name()), res.Ahead)
			writeSection(&text, fmt.Sprintf("%s not in %s", b.Name(), a.Name()), res.Behind)
			if opts.Common {
				writeSection(&text, "common", res.Common)
			}
			return opts.formatter(cmd).Emit(res, strings.TrimRight(text.String(), "\n"))
		},
	}

	cmd.Flags().BoolVar(&opts.Common, "common", false, "also list the shared history")
	return cmd
}

func writeSection(b *strings.Builder, title string, nodes []ir.EventNode) {
	fmt.Fprintf(b, "%s (%d):\n", title, len(nodes))
	for _, n := range nodes {
		fmt.Fprintf(b, "  %s %s\n", ir.ShortID(n.ID), n.Line())
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
