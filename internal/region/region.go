package region

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
)

// headSet is an immutable, sorted set of event ids. Regions swap whole
// headSet pointers, never mutate one, so a fork can share its parent's value.
type headSet struct {
	ids []string
}

func newHeadSet(ids []string) *headSet {
	return &headSet{ids: ir.NormalizeParents(ids)}
}

// Region is a named, mutable pointer into a shared graph.Store.
//
// A region never holds events, only the ids of its frontier. Appends
// fast-forward the frontier to the single new event; fork copies the
// frontier; merge takes the minimal cover of two frontiers.
//
// Thread-safety model:
//   - name, meta and store never change after construction
//   - heads is swapped with compare-and-swap; an append that loses a race
//     re-reads the heads and appends again, so no interleaved update is lost
type Region struct {
	store *graph.Store
	name  string
	meta  map[string]string
	heads atomic.Pointer[headSet]
}

// New creates a region on store with an optional initial frontier.
func New(store *graph.Store, name string, meta map[string]string, heads ...string) *Region {
	r := &Region{
		store: store,
		name:  name,
		meta:  maps.Clone(meta),
	}
	if r.meta == nil {
		r.meta = map[string]string{}
	}
	r.heads.Store(newHeadSet(heads))
	return r
}

// Name returns the region name.
func (r *Region) Name() string { return r.name }

// Meta returns a copy of the region metadata.
func (r *Region) Meta() map[string]string { return maps.Clone(r.meta) }

// Heads returns the current frontier, sorted.
func (r *Region) Heads() []string {
	return slices.Clone(r.heads.Load().ids)
}

// Store returns the store the region points into.
func (r *Region) Store() *graph.Store { return r.store }

// Observe records an observation.
func (r *Region) Observe(content string) (string, error) {
	return r.Append(ir.OpObserve, content)
}

// Plan records a planning step.
func (r *Region) Plan(content string) (string, error) {
	return r.Append(ir.OpPlan, content)
}

// Effect records the result of a tool call as "tool: result".
func (r *Region) Effect(tool, result string) (string, error) {
	return r.Append(ir.OpEffect, tool+": "+result)
}

// Summarize records a summary.
func (r *Region) Summarize(content string) (string, error) {
	return r.Append(ir.OpSummarize, content)
}

// Append records an event under any op tag. The new event's parents are the
// current heads and the region's meta is attached. On success the heads
// become exactly the new id.
//
// The store is held for the whole append, so a concurrent collection GC
// sees either the old heads or the new id, never a gap between them.
func (r *Region) Append(op ir.Op, content string) (string, error) {
	release := r.store.Hold()
	defer release()

	for {
		cur := r.heads.Load()

		id, err := r.store.Append(op, content, r.meta, cur.ids)
		if err != nil {
			return "", fmt.Errorf("region %s: %w", r.name, err)
		}

		if r.heads.CompareAndSwap(cur, &headSet{ids: []string{id}}) {
			return id, nil
		}

		// Heads moved underneath us. The event just written still hangs off
		// the stale frontier; it stays in the store unreferenced until GC.
		r.store.Logger().Debug("region heads changed during append, retrying",
			"region", r.name,
			"orphan", ir.ShortID(id),
		)
	}
}

// Fork returns a new region sharing this region's heads and a copy of its
// meta. It touches no events. Later appends to either region leave the
// other's heads untouched.
func (r *Region) Fork(newName string) *Region {
	f := &Region{
		store: r.store,
		name:  newName,
		meta:  maps.Clone(r.meta),
	}
	f.heads.Store(r.heads.Load())

	r.store.Logger().Debug("region forked", "from", r.name, "to", newName)
	return f
}

// Merge returns a new region whose heads are the minimal cover of both
// regions' heads. No event is copied and no merge event is written: the next
// append to the merged region records the join through its multiple parents.
//
// The merged meta is other's meta overlaid with r's meta.
func (r *Region) Merge(other *Region, newName string) (*Region, error) {
	if r.store != other.store {
		return nil, ir.NewStoreMismatchError(r.name, other.name)
	}

	meta := maps.Clone(other.meta)
	maps.Copy(meta, r.meta)

	union := append(r.Heads(), other.Heads()...)
	return New(r.store, newName, meta, r.store.MinimalCover(union)...), nil
}

// Absorb merges other's heads into r in place.
func (r *Region) Absorb(other *Region) error {
	if r.store != other.store {
		return ir.NewStoreMismatchError(r.name, other.name)
	}

	release := r.store.Hold()
	defer release()

	theirs := other.Heads()
	for {
		cur := r.heads.Load()
		next := newHeadSet(r.store.MinimalCover(append(slices.Clone(cur.ids), theirs...)))
		if r.heads.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Replay returns every event reachable from the heads, each once, in
// chronological order. A region without heads replays nothing.
func (r *Region) Replay() []ir.EventNode {
	heads := r.Heads()
	if len(heads) == 0 {
		return []ir.EventNode{}
	}
	return r.store.Traverse(heads, nil)
}

// Compact is Replay passed through Compact. It exists as its own operation
// so callers can rely on idempotence explicitly.
func (r *Region) Compact() []ir.EventNode {
	return Compact(r.Replay())
}

// ForPrompt renders the compacted history as "[OP] content" lines.
func (r *Region) ForPrompt() string {
	return Render(r.Compact())
}

// Ahead returns the events r has that other does not: Diff(r, other).
func (r *Region) Ahead(other *Region) []ir.EventNode {
	return Diff(r, other)
}

// Behind returns the events other has that r does not: Diff(other, r).
func (r *Region) Behind(other *Region) []ir.EventNode {
	return Diff(other, r)
}

// Summary describes the region in a few lines.
func (r *Region) Summary() string {
	heads := r.Heads()
	short := make([]string, len(heads))
	for i, h := range heads {
		short[i] = ir.ShortID(h)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Region '%s'\n", r.name)
	fmt.Fprintf(&b, " - Heads: %s\n", strings.Join(short, ", "))
	fmt.Fprintf(&b, " - Meta: %s", formatMeta(r.meta))
	return b.String()
}

func formatMeta(m map[string]string) string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
