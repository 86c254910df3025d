package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/memento/internal/config"
	"github.com/roach88/memento/internal/pgstore"
	"github.com/roach88/memento/internal/store"
	"github.com/roach88/memento/internal/workspace"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // SQLite path
	DSN      string // PostgreSQL DSN; wins over Database when set
	LogLevel string

	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the memento CLI. cfg supplies
// flag defaults.
func NewRootCommand(cfg config.Config) *cobra.Command {
	return newRootCommand(&RootOptions{}, cfg)
}

func newRootCommand(opts *RootOptions, cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memento",
		Short: "memento - versioned agent memory",
		Long: `A content-addressed memory graph for agents.

Every observation, plan, effect and summary is an immutable event whose id is
the hash of its content and parents. Regions are named head pointers into the
graph: fork them to explore, merge them to reconcile, replay them into prompts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level, err := config.ParseLevel(opts.LogLevel)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid log level", err)
			}
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", cfg.Database, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", cfg.PostgresDSN, "PostgreSQL connection string (overrides --db)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")

	cmd.AddCommand(NewRegionCommand(opts))
	cmd.AddCommand(NewAppendCommands(opts)...)
	cmd.AddCommand(NewForkCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewPromptCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

// Run executes the CLI with args and returns the process exit code. Errors
// are reported on stderr in the selected format.
func Run(cfg config.Config, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts, cfg)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	out := &OutputFormatter{Format: format, Writer: stderr, Verbose: opts.Verbose}
	_ = out.Error(ErrorCode(err), err.Error(), nil)

	// Errors cobra returns directly are flag and argument problems.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ExitCommandError
	}
	return exitErr.Code
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// openWorkspace opens the configured backend and loads the workspace.
func (o *RootOptions) openWorkspace(ctx context.Context) (*workspace.Workspace, error) {
	var backend workspace.Backend
	if o.DSN != "" {
		pg, err := pgstore.Open(ctx, o.DSN)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		backend = pg
	} else {
		if strings.TrimSpace(o.Database) == "" {
			return nil, NewExitError(ExitCommandError, "no database: set --db, --dsn, MEMENTO_DB or MEMENTO_PG_DSN")
		}
		st, err := store.Open(o.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		backend = st
	}

	ws, err := workspace.Open(ctx, backend, workspace.WithLogger(o.logger()))
	if err != nil {
		backend.Close()
		return nil, WrapExitError(ExitFailure, "failed to load workspace", err)
	}
	return ws, nil
}

// failure wraps a memory-graph error with ExitFailure.
func failure(message string, err error) error {
	return WrapExitError(ExitFailure, message, err)
}

// parseMeta turns repeated key=value flags into a map.
func parseMeta(pairs []string) (map[string]string, error) {
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid meta %q: want key=value", pair))
		}
		meta[k] = v
	}
	return meta, nil
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
