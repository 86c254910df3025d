package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/store"
	"github.com/roach88/memento/internal/testutil"
	"github.com/roach88/memento/internal/workspace"
)

// Harness executes scenario steps against one workspace.
type Harness struct {
	ws     *workspace.Workspace
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory SQLite database, so every step
// goes through the same write-through path the CLI uses. Timestamps come
// from a deterministic clock and generated names from a counter, so a
// scenario always builds the same graph.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.ws, err = workspace.Open(ctx, st,
		workspace.WithClock(h.clock),
		workspace.WithNameGenerator(testutil.NewSequentialNames()),
		workspace.WithLogger(h.logger),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	defer h.ws.Close()

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i+1, step, result)
	}

	for i, a := range scenario.Assertions {
		if err := h.checkAssertion(a); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	for _, r := range h.ws.Collection().List() {
		result.Regions = append(result.Regions, RegionSnapshot{
			Name:   r.Name(),
			Heads:  len(r.Heads()),
			Prompt: r.ForPrompt(),
		})
	}
	return result, nil
}

// executeStep runs one step and records it. A step that fails unexpectedly,
// or fails with the wrong code, or succeeds when it should fail, is a
// result error; execution continues with the next step.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) {
	ev, err := h.apply(ctx, step)
	ev.Step = n
	ev.Action = step.Action

	switch {
	case err != nil && step.ExpectError == "":
		result.AddError(fmt.Sprintf("step %d (%s): %v", n, step.Action, err))
		return
	case err != nil && string(ir.CodeOf(err)) != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %v", n, step.Action, step.ExpectError, err))
		return
	case err == nil && step.ExpectError != "":
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got success", n, step.Action, step.ExpectError))
	}
	if err != nil {
		ev.Error = step.ExpectError
	}

	h.logger.Debug("step executed", "step", n, "action", step.Action, "region", ev.Region)
	result.Trace = append(result.Trace, ev)
}

// apply performs a step's operation on the workspace.
func (h *Harness) apply(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{Region: step.Region, Content: step.Content}

	var err error
	switch step.Action {
	case ActionNew:
		_, err = h.ws.NewRegion(ctx, step.Region, step.Meta)
	case ActionObserve:
		_, err = h.ws.Observe(ctx, step.Region, step.Content)
	case ActionPlan:
		_, err = h.ws.Plan(ctx, step.Region, step.Content)
	case ActionSummarize:
		_, err = h.ws.Summarize(ctx, step.Region, step.Content)
	case ActionEffect:
		ev.Content = step.Tool + ": " + step.Result
		_, err = h.ws.Effect(ctx, step.Region, step.Tool, step.Result)
	case ActionFork:
		ev.Sources = []string{step.From}
		f, ferr := h.ws.Fork(ctx, step.From, step.Region)
		if ferr == nil {
			ev.Region = f.Name()
		}
		err = ferr
	case ActionMerge:
		ev.Sources = []string{step.From, step.With}
		m, merr := h.ws.Merge(ctx, step.From, step.With, step.Region)
		if merr == nil {
			ev.Region = m.Name()
		}
		err = merr
	case ActionDelete:
		err = h.ws.DeleteRegion(ctx, step.Region)
	case ActionGC:
		removed, gerr := h.ws.GC(ctx)
		ev.Removed = len(removed)
		err = gerr
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	return ev, err
}
