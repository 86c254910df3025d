package region

import (
	"strings"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
)

// Diff returns the events reachable from a's heads that are not reachable
// from b's heads, in chronological order.
//
// Diff is asymmetric on purpose. Call Diff(a, b) and Diff(b, a) (or
// a.Ahead(b) and a.Behind(b)) to get both sides; Common gives the shared
// part. Together the three partition reachable(a) ∪ reachable(b).
// Regions on different stores have nothing in common, so Diff(a, b) is all
// of a's history.
func Diff(a, b *Region) []ir.EventNode {
	if a.store != b.store {
		return a.Replay()
	}
	return a.store.Difference(a.Heads(), b.Heads())
}

// Common returns the events reachable from both regions.
func Common(a, b *Region) []ir.EventNode {
	if a.store != b.store {
		return []ir.EventNode{}
	}
	return a.store.Intersection(a.Heads(), b.Heads())
}

// Compact de-duplicates events by id and orders them chronologically.
// Compact(Compact(x)) equals Compact(x).
func Compact(nodes []ir.EventNode) []ir.EventNode {
	return graph.Order(nodes)
}

// Render formats events as "[OP] content" lines, one per event.
// It is a view for prompts, never a source of truth.
func Render(nodes []ir.EventNode) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = n.Line()
	}
	return strings.Join(lines, "\n")
}
