// Package harness runs memento scenarios: YAML scripts of region operations
// followed by assertions, executed against a fresh in-memory SQLite
// workspace with a deterministic clock.
//
// # Scenario Format
//
//	name: fork_and_merge
//	description: "What this scenario validates"
//	steps:
//	  - action: new
//	    region: AgentA
//	    meta: { role: planner }
//	  - action: observe
//	    region: AgentA
//	    content: User asked for a loan
//	  - action: effect
//	    region: AgentA
//	    tool: credit_api
//	    result: "score: 720"
//	  - action: fork
//	    from: AgentA
//	    region: AgentB
//	  - action: merge
//	    from: AgentA
//	    with: AgentB
//	    region: UnifiedAgent
//	  - action: observe
//	    region: Missing
//	    content: x
//	    expect_error: UNKNOWN_REGION
//	assertions:
//	  - type: prompt_contains
//	    region: AgentB
//	    text: "income: 80k"
//	  - type: event_count
//	    region: UnifiedAgent
//	    count: 9
//
// Fork and merge steps without a region name get one generated from a
// sequential counter ("AgentA-0001").
//
// # Assertion Types
//
//   - prompt: the region's prompt equals text exactly
//   - prompt_contains: the region's prompt contains text
//   - event_count: the region's history has count events
//   - head_count: the region has count heads
//   - diff_count: count events reachable from region but not from other
//   - query_count: count events match text/op/meta, in region or the whole graph
//   - store_count: the graph holds count events
//   - regions: the region names are exactly names
//
// # Golden Files
//
// RunWithGolden renders the trace and every region's prompt and compares
// it byte for byte with testdata/golden/<name>.golden. Regenerate with
//
//	go test ./internal/harness -update
package harness
