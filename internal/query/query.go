package query

import (
	"fmt"
	"strings"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/region"
)

// Query runs filtered traversals over a store.
//
// Every method that takes start ids walks backward from them; with no start
// ids it walks from the store-wide heads, which covers every event that is
// still an ancestor of some head.
type Query struct {
	store *graph.Store
}

// New creates a Query over store.
func New(store *graph.Store) *Query {
	return &Query{store: store}
}

// Find returns the reachable events m matches, in chronological order.
// A nil m matches everything.
func (q *Query) Find(m Matcher, start ...string) []ir.EventNode {
	return q.store.Traverse(start, m)
}

// Scan matches m against every node in the store, reachable or not.
// A nil m matches everything.
func (q *Query) Scan(m Matcher) []ir.EventNode {
	return q.store.Scan(m)
}

// SearchText returns events whose content contains text.
func (q *Query) SearchText(text string, start ...string) []ir.EventNode {
	return q.Find(ByText(text), start...)
}

// FilterByOp returns events with the given op.
func (q *Query) FilterByOp(op ir.Op, start ...string) []ir.EventNode {
	return q.Find(ByOp(op), start...)
}

// FilterByMeta returns events where meta[key] == value.
func (q *Query) FilterByMeta(key, value string, start ...string) []ir.EventNode {
	return q.Find(ByMeta{Key: key, Value: value}, start...)
}

// Custom runs an arbitrary predicate over the graph.
func (q *Query) Custom(fn func(ir.EventNode) bool, start ...string) []ir.EventNode {
	return q.Find(Func(fn), start...)
}

// InRegion returns the events of r that m matches. A region without heads
// yields nothing, unlike Find with no start ids.
func (q *Query) InRegion(r *region.Region, m Matcher) []ir.EventNode {
	heads := r.Heads()
	if len(heads) == 0 {
		return []ir.EventNode{}
	}
	return q.Find(m, heads...)
}

// ReplayRegion returns the region's history in chronological order.
func (q *Query) ReplayRegion(r *region.Region) []ir.EventNode {
	return r.Replay()
}

// SummarizeRegion describes a region in one line:
//
//	Region 'Planner' with 2 event(s). Heads: 1a2b3c4d
func (q *Query) SummarizeRegion(r *region.Region) string {
	events := q.ReplayRegion(r)

	heads := r.Heads()
	short := make([]string, len(heads))
	for i, h := range heads {
		short[i] = ir.ShortID(h)
	}
	return fmt.Sprintf("Region '%s' with %d event(s). Heads: %s",
		r.Name(), len(events), strings.Join(short, ", "))
}
