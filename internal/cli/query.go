package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/query"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Text    []string
	Ops     []string
	Meta    []string
	Region  string
	Any     bool
	FromLog bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find events by text, op or metadata",
		Long: `Query matches events against every given filter (or any of them with
--any). Without --region the whole graph is scanned; with --region only the
region's history is searched. --log evaluates the filters in the database
against the region's persisted event log.`,
		Example: `  memento query --text User
  memento query --region AgentX --op plan
  memento query --region AgentX --meta agent=analyzer --log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.matcher()
			if err != nil {
				return err
			}
			if opts.FromLog && opts.Region == "" {
				return NewExitError(ExitCommandError, "--log requires --region")
			}

			ctx := context.Background()
			ws, err := opts.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			var nodes []ir.EventNode
			switch {
			case opts.FromLog:
				nodes, err = ws.QueryEvents(ctx, opts.Region, m)
			case opts.Region != "":
				r, rerr := ws.Region(opts.Region)
				if rerr == nil {
					nodes = query.New(ws.Store()).InRegion(r, m)
				}
				err = rerr
			default:
				nodes = query.New(ws.Store()).Scan(m)
			}
			if err != nil {
				return failure("query failed", err)
			}
			return opts.formatter(cmd).Emit(nodes, renderNodes(nodes))
		},
	}

	cmd.Flags().StringArrayVar(&opts.Text, "text", nil, "content contains text (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Ops, "op", nil, "op equals (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Meta, "meta", nil, "meta key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "search only this region's history")
	cmd.Flags().BoolVar(&opts.Any, "any", false, "match any filter instead of all")
	cmd.Flags().BoolVar(&opts.FromLog, "log", false, "evaluate in the database against the region's event log")
	return cmd
}

// matcher combines the filter flags. No filters match everything.
func (o *QueryOptions) matcher() (query.Matcher, error) {
	var ms []query.Matcher
	for _, t := range o.Text {
		ms = append(ms, query.ByText(t))
	}
	for _, op := range o.Ops {
		ms = append(ms, query.ByOp(ir.Op(op)))
	}
	meta, err := parseMeta(o.Meta)
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(meta) {
		ms = append(ms, query.ByMeta{Key: k, Value: meta[k]})
	}

	switch {
	case len(ms) == 0:
		return query.All(), nil
	case o.Any:
		return query.Or(ms...), nil
	default:
		return query.And(ms...), nil
	}
}
