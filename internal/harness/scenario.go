package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of region operations plus assertions on the
// final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against a fresh workspace.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one region operation.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Region is the target region; for fork and merge it is the new name
	// (generated when empty).
	Region string `yaml:"region,omitempty"`

	// Content is the text of observe, plan and summarize.
	Content string `yaml:"content,omitempty"`

	// Tool and Result form an effect's content.
	Tool   string `yaml:"tool,omitempty"`
	Result string `yaml:"result,omitempty"`

	// From is the fork source or the first merge input.
	From string `yaml:"from,omitempty"`

	// With is the second merge input.
	With string `yaml:"with,omitempty"`

	// Meta is the metadata of a new region.
	Meta map[string]string `yaml:"meta,omitempty"`

	// ExpectError, when set, is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	ActionNew       = "new"
	ActionObserve   = "observe"
	ActionPlan      = "plan"
	ActionEffect    = "effect"
	ActionSummarize = "summarize"
	ActionFork      = "fork"
	ActionMerge     = "merge"
	ActionDelete    = "delete"
	ActionGC        = "gc"
)

// Assertion checks the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Region is the subject region (all types but store_count and regions).
	// Optional for query_count, which then scans the whole graph.
	Region string `yaml:"region,omitempty"`

	// Other is the region subtracted by diff_count.
	Other string `yaml:"other,omitempty"`

	// Text is the expected prompt (prompt), a prompt substring
	// (prompt_contains) or a content filter (query_count).
	Text string `yaml:"text,omitempty"`

	// Op and Meta filter query_count.
	Op   string            `yaml:"op,omitempty"`
	Meta map[string]string `yaml:"meta,omitempty"`

	// Count is the expected number for the *_count types.
	Count int `yaml:"count,omitempty"`

	// Names is the expected region list (regions).
	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertPrompt         = "prompt"
	AssertPromptContains = "prompt_contains"
	AssertEventCount     = "event_count"
	AssertHeadCount      = "head_count"
	AssertDiffCount      = "diff_count"
	AssertQueryCount     = "query_count"
	AssertStoreCount     = "store_count"
	AssertRegions        = "regions"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single step based on its action.
func validateStep(index int, s *Step) error {
	switch s.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionNew, ActionDelete, ActionObserve, ActionPlan, ActionSummarize:
		if s.Region == "" {
			return fmt.Errorf("steps[%d]: region is required for %s", index, s.Action)
		}
	case ActionEffect:
		if s.Region == "" || s.Tool == "" {
			return fmt.Errorf("steps[%d]: region and tool are required for effect", index)
		}
	case ActionFork:
		if s.From == "" {
			return fmt.Errorf("steps[%d]: from is required for fork", index)
		}
	case ActionMerge:
		if s.From == "" || s.With == "" {
			return fmt.Errorf("steps[%d]: from and with are required for merge", index)
		}
	case ActionGC:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPrompt, AssertPromptContains:
		if a.Region == "" {
			return fmt.Errorf("assertions[%d]: region is required for %s", index, a.Type)
		}
		if a.Type == AssertPromptContains && a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for prompt_contains", index)
		}
	case AssertEventCount, AssertHeadCount:
		if a.Region == "" {
			return fmt.Errorf("assertions[%d]: region is required for %s", index, a.Type)
		}
	case AssertDiffCount:
		if a.Region == "" || a.Other == "" {
			return fmt.Errorf("assertions[%d]: region and other are required for diff_count", index)
		}
	case AssertQueryCount:
		if a.Text == "" && a.Op == "" && len(a.Meta) == 0 {
			return fmt.Errorf("assertions[%d]: query_count needs text, op or meta", index)
		}
	case AssertStoreCount:
	case AssertRegions:
		if a.Names == nil {
			return fmt.Errorf("assertions[%d]: names is required for regions", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
