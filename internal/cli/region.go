package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/region"
)

// RegionOptions holds flags for the region commands.
type RegionOptions struct {
	*RootOptions
	Meta []string
}

// regionView is the JSON shape of a region.
type regionView struct {
	region.Pointer
	Events int `json:"events"`
}

func viewOf(r *region.Region) regionView {
	return regionView{Pointer: r.Pointer(), Events: len(r.Replay())}
}

// NewRegionCommand creates the region command group.
func NewRegionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region",
		Short: "Create, list, inspect and delete regions",
	}
	cmd.AddCommand(newRegionNewCommand(rootOpts))
	cmd.AddCommand(newRegionListCommand(rootOpts))
	cmd.AddCommand(newRegionShowCommand(rootOpts))
	cmd.AddCommand(newRegionRemoveCommand(rootOpts))
	return cmd
}

func newRegionNewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "new NAME",
		Short: "Create an empty region",
		Example: `  memento region new Planner --meta agent=planner
  memento region new Retry --db ./agents.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseMeta(opts.Meta)
			if err != nil {
				return err
			}

			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			r, err := ws.NewRegion(ctx, args[0], meta)
			if err != nil {
				return failure("failed to create region", err)
			}
			return opts.formatter(cmd).Emit(viewOf(r), fmt.Sprintf("created region %s", r.Name()))
		},
	}

	cmd.Flags().StringArrayVar(&opts.Meta, "meta", nil, "region metadata as key=value (repeatable)")
	return cmd
}

func newRegionListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List regions and their heads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			coll := ws.Collection()
			views := []regionView{}
			for _, r := range coll.List() {
				views = append(views, viewOf(r))
			}
			return opts.formatter(cmd).Emit(views, coll.Summary())
		},
	}
}

func newRegionShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a region's heads and metadata",
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
				return failure("failed to show region", err)
			}
			return opts.formatter(cmd).Emit(viewOf(r), r.Summary())
		},
	}
}

func newRegionRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"delete"},
		Short:   "Delete a region (its events stay until gc)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.DeleteRegion(ctx, args[0]); err != nil {
				return failure("failed to delete region", err)
			}
			return opts.formatter(cmd).Emit(map[string]string{"deleted": args[0]},
				fmt.Sprintf("deleted region %s", args[0]))
		},
	}
}
