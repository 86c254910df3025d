package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render produces the golden text of a run: the trace, then every region
// with its head count and prompt.
//
//	scenario: fork_and_merge
//
//	trace:
//	1 new AgentA
//	2 observe AgentA: User asked for a loan
//
//	regions:
//	## AgentA (1 head)
//	[OBSERVE] User asked for a loan
func Render(scenarioName string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n\ntrace:\n", scenarioName)
	for _, ev := range result.Trace {
		b.WriteString(ev.String())
		b.WriteByte('\n')
	}

	b.WriteString("\nregions:\n")
	for _, r := range result.Regions {
		noun := "heads"
		if r.Heads == 1 {
			noun = "head"
		}
		fmt.Fprintf(&b, "## %s (%d %s)\n", r.Name, r.Heads, noun)
		if r.Prompt != "" {
			b.WriteString(r.Prompt)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its rendering against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
