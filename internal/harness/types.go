package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int      `json:"step"`
	Action  string   `json:"action"`
	Region  string   `json:"region,omitempty"`
	Sources []string `json:"sources,omitempty"` // fork source, merge inputs
	Content string   `json:"content,omitempty"`
	Removed int      `json:"removed,omitempty"` // gc only
	Error   string   `json:"error,omitempty"`   // expected error code
}

// String renders the event as one trace line.
func (e TraceEvent) String() string {
	var line string
	switch e.Action {
	case ActionFork:
		line = fmt.Sprintf("%d fork %s -> %s", e.Step, strings.Join(e.Sources, ""), e.Region)
	case ActionMerge:
		line = fmt.Sprintf("%d merge %s -> %s", e.Step, strings.Join(e.Sources, " + "), e.Region)
	case ActionGC:
		line = fmt.Sprintf("%d gc removed %d", e.Step, e.Removed)
	case ActionNew, ActionDelete:
		line = fmt.Sprintf("%d %s %s", e.Step, e.Action, e.Region)
	default:
		line = fmt.Sprintf("%d %s %s: %s", e.Step, e.Action, e.Region, e.Content)
	}
	if e.Error != "" {
		line += " !" + e.Error
	}
	return line
}

// RegionSnapshot is the final state of one region.
type RegionSnapshot struct {
	Name   string `json:"name"`
	Heads  int    `json:"heads"`
	Prompt string `json:"prompt"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors explains each failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Regions is the final state, sorted by name.
	Regions []RegionSnapshot `json:"regions"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Regions: []RegionSnapshot{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
