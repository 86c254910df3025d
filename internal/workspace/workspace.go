package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/persist"
	"github.com/roach88/memento/internal/query"
	"github.com/roach88/memento/internal/querysql"
	"github.com/roach88/memento/internal/region"
)

// Backend is the relational persistence a Workspace writes through to.
// Implemented by store.Store (SQLite) and pgstore.PgStore (PostgreSQL).
type Backend interface {
	SaveNodes(ctx context.Context, nodes []ir.EventNode) error
	DeleteNodes(ctx context.Context, ids []string) error
	LoadNodes(ctx context.Context) ([]ir.EventNode, error)
	RecordEvent(ctx context.Context, regionName string, n ir.EventNode) error
	RegionEvents(ctx context.Context, regionName string) ([]ir.EventNode, error)
	QueryEvents(ctx context.Context, regionName string, m query.Matcher) ([]ir.EventNode, error)
	SaveRegion(ctx context.Context, p region.Pointer) error
	DeleteRegion(ctx context.Context, name string) error
	RegionHeads(ctx context.Context, name string) (region.Pointer, error)
	LoadRegions(ctx context.Context) ([]region.Pointer, error)
	Close() error
}

// Workspace is a region collection backed by a Backend.
type Workspace struct {
	backend Backend
	coll    *region.Collection
	logger  *slog.Logger
}

type options struct {
	logger *slog.Logger
	clock  graph.Clock
	names  region.NameGenerator
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger for the workspace, its store and collection.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used to stamp new events.
func WithClock(c graph.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNameGenerator sets the generator for default fork and merge names.
func WithNameGenerator(g region.NameGenerator) Option {
	return func(o *options) { o.names = g }
}

// Open loads every node and region pointer from backend.
//
// Nodes are restored in one batch and every region head must resolve to a
// loaded node; otherwise Open fails with CORRUPT_PERSISTED_STATE.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Workspace, error) {
	o := options{logger: slog.Default(), clock: graph.WallClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	nodes, err := backend.LoadNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	store := graph.New(graph.WithClock(o.clock), graph.WithLogger(o.logger))
	if err := store.Restore(nodes); err != nil {
		return nil, err
	}

	ptrs, err := backend.LoadRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}
	for _, p := range ptrs {
		for _, h := range p.Heads {
			if !store.Has(h) {
				return nil, ir.NewCorruptStateError(p.Name, "head %s not found", ir.ShortID(h))
			}
		}
	}

	collOpts := []region.CollectionOption{region.WithLogger(o.logger)}
	if o.names != nil {
		collOpts = append(collOpts, region.WithNameGenerator(o.names))
	}
	coll := region.NewCollection(store, collOpts...)
	if err := coll.LoadPointers(ptrs); err != nil {
		return nil, err
	}

	o.logger.Debug("workspace opened", "nodes", store.Len(), "regions", coll.Len())
	return &Workspace{backend: backend, coll: coll, logger: o.logger}, nil
}

// Close closes the backend.
func (w *Workspace) Close() error {
	return w.backend.Close()
}

// Collection returns the in-memory regions.
func (w *Workspace) Collection() *region.Collection { return w.coll }

// Store returns the in-memory graph.
func (w *Workspace) Store() *graph.Store { return w.coll.Store() }

// Backend returns the persistence backend.
func (w *Workspace) Backend() Backend { return w.backend }

// Region returns a region by name or UNKNOWN_REGION.
func (w *Workspace) Region(name string) (*region.Region, error) {
	return w.coll.Get(name)
}

// NewRegion creates an empty region and persists its pointer.
func (w *Workspace) NewRegion(ctx context.Context, name string, meta map[string]string) (*region.Region, error) {
	r, err := w.coll.New(name, meta)
	if err != nil {
		return nil, err
	}
	if err := w.backend.SaveRegion(ctx, r.Pointer()); err != nil {
		_ = w.coll.Delete(name)
		return nil, fmt.Errorf("save region %s: %w", name, err)
	}
	return r, nil
}

// Append adds an event to the named region and writes the node, the
// region's log row and its new heads. If the write fails the region's heads
// are rolled back in memory.
func (w *Workspace) Append(ctx context.Context, name string, op ir.Op, content string) (string, error) {
	r, err := w.coll.Get(name)
	if err != nil {
		return "", err
	}
	before := r.Pointer()

	id, err := r.Append(op, content)
	if err != nil {
		return "", err
	}
	if err := w.commitAppend(ctx, r, before, id); err != nil {
		return "", err
	}

	w.logger.Debug("event persisted", "region", name, "op", op, "id", ir.ShortID(id))
	return id, nil
}

// commitAppend persists the event id just appended to r. On failure r's
// heads go back to before.
func (w *Workspace) commitAppend(ctx context.Context, r *region.Region, before region.Pointer, id string) error {
	var err error
	if node, ok := w.Store().Get(id); ok {
		err = w.persistAppend(ctx, r, node)
	} else {
		err = ir.NewCorruptStateError(ir.ShortID(id), "event left the store before it was persisted")
	}
	if err == nil {
		return nil
	}

	if restored, rerr := region.FromPointer(w.Store(), before); rerr == nil {
		_ = w.coll.Put(restored)
	}
	return err
}

func (w *Workspace) persistAppend(ctx context.Context, r *region.Region, node ir.EventNode) error {
	if err := w.backend.SaveNodes(ctx, []ir.EventNode{node}); err != nil {
		return fmt.Errorf("append to %s: %w", r.Name(), err)
	}
	if err := w.backend.RecordEvent(ctx, r.Name(), node); err != nil {
		return fmt.Errorf("append to %s: %w", r.Name(), err)
	}
	if err := w.backend.SaveRegion(ctx, r.Pointer()); err != nil {
		return fmt.Errorf("append to %s: %w", r.Name(), err)
	}
	return nil
}

// Observe appends an observe event to the named region.
func (w *Workspace) Observe(ctx context.Context, name, content string) (string, error) {
	return w.Append(ctx, name, ir.OpObserve, content)
}

// Plan appends a plan event to the named region.
func (w *Workspace) Plan(ctx context.Context, name, content string) (string, error) {
	return w.Append(ctx, name, ir.OpPlan, content)
}

// Effect appends an effect event "tool: result" to the named region.
func (w *Workspace) Effect(ctx context.Context, name, tool, result string) (string, error) {
	return w.Append(ctx, name, ir.OpEffect, tool+": "+result)
}

// Summarize appends a summarize event to the named region.
func (w *Workspace) Summarize(ctx context.Context, name, content string) (string, error) {
	return w.Append(ctx, name, ir.OpSummarize, content)
}

// Fork forks src into newName (generated when empty) and persists the new
// region with its inherited history as its event log.
func (w *Workspace) Fork(ctx context.Context, src, newName string) (*region.Region, error) {
	f, err := w.coll.Fork(src, newName)
	if err != nil {
		return nil, err
	}
	if err := w.persistRegion(ctx, f); err != nil {
		w.discardRegion(ctx, f.Name())
		return nil, err
	}
	return f, nil
}

// Merge merges a and b into newName (generated when empty) and persists it.
func (w *Workspace) Merge(ctx context.Context, a, b, newName string) (*region.Region, error) {
	m, err := w.coll.Merge(a, b, newName)
	if err != nil {
		return nil, err
	}
	if err := w.persistRegion(ctx, m); err != nil {
		w.discardRegion(ctx, m.Name())
		return nil, err
	}
	return m, nil
}

// persistRegion writes r's pointer and records its whole history in r's log.
// The pointer goes first, so a failure part way leaves rows that a backend
// DeleteRegion removes.
func (w *Workspace) persistRegion(ctx context.Context, r *region.Region) error {
	if err := w.backend.SaveRegion(ctx, r.Pointer()); err != nil {
		return fmt.Errorf("save region %s: %w", r.Name(), err)
	}
	for _, n := range r.Replay() {
		if err := w.backend.RecordEvent(ctx, r.Name(), n); err != nil {
			return fmt.Errorf("record %s history: %w", r.Name(), err)
		}
	}
	return nil
}

// discardRegion drops a region whose creation failed to persist, from memory
// and from whatever the backend already holds for it.
func (w *Workspace) discardRegion(ctx context.Context, name string) {
	_ = w.coll.Delete(name)
	if err := w.backend.DeleteRegion(ctx, name); err != nil && !ir.IsUnknownRegion(err) {
		w.logger.Warn("cleanup of unpersisted region failed", "region", name, "error", err)
	}
}

// DeleteRegion removes a region from memory and the backend. Its events
// stay in the graph until GC.
func (w *Workspace) DeleteRegion(ctx context.Context, name string) error {
	if err := w.backend.DeleteRegion(ctx, name); err != nil {
		return err
	}
	return w.coll.Delete(name)
}

// Events returns the persisted event log of a region, ordered by
// timestamp then id.
func (w *Workspace) Events(ctx context.Context, name string) ([]ir.EventNode, error) {
	if _, err := w.coll.Get(name); err != nil {
		return nil, err
	}
	return w.backend.RegionEvents(ctx, name)
}

// QueryEvents evaluates m against a region's persisted log in the backend.
// Matchers with no SQL form are evaluated in memory over the loaded log.
func (w *Workspace) QueryEvents(ctx context.Context, name string, m query.Matcher) ([]ir.EventNode, error) {
	if _, err := w.coll.Get(name); err != nil {
		return nil, err
	}

	found, err := w.backend.QueryEvents(ctx, name, m)
	if !errors.Is(err, querysql.ErrNotCompilable) {
		return found, err
	}

	events, err := w.backend.RegionEvents(ctx, name)
	if err != nil {
		return nil, err
	}
	out := []ir.EventNode{}
	for _, n := range events {
		if m.Matches(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// GC sweeps every event unreachable from a region head and deletes the same
// ids from the backend.
func (w *Workspace) GC(ctx context.Context) ([]string, error) {
	removed := w.coll.GC()
	if err := w.backend.DeleteNodes(ctx, removed); err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	w.logger.Info("gc committed", "removed", len(removed))
	return removed, nil
}

// Sync writes every node and region pointer to the backend.
func (w *Workspace) Sync(ctx context.Context) error {
	if err := w.backend.SaveNodes(ctx, w.Store().Nodes()); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	for _, r := range w.coll.List() {
		if err := w.persistRegion(ctx, r); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}
	w.logger.Info("workspace synced", "nodes", w.Store().Len(), "regions", w.coll.Len())
	return nil
}

// Export snapshots the whole workspace as a backup.
func (w *Workspace) Export() *persist.Backup {
	return persist.Snapshot(w.coll)
}

// Import applies a backup on top of the workspace and persists the result.
// Regions in the backup replace same-named regions; other regions are kept.
func (w *Workspace) Import(ctx context.Context, b *persist.Backup) error {
	merged := make(map[string]region.Pointer)
	for _, p := range w.coll.Pointers() {
		merged[p.Name] = p
	}
	for _, p := range b.Regions {
		merged[p.Name] = p
	}

	staged := *b
	staged.Regions = make([]region.Pointer, 0, len(merged))
	for _, p := range merged {
		staged.Regions = append(staged.Regions, p)
	}
	if err := staged.Apply(w.coll); err != nil {
		return err
	}
	return w.Sync(ctx)
}

// ExportLog renders a region's history as JSONL records attributed to the
// region name.
func (w *Workspace) ExportLog(name string) ([]persist.Record, error) {
	r, err := w.coll.Get(name)
	if err != nil {
		return nil, err
	}
	return persist.RecordsFor(name, r.Replay()), nil
}

// ImportLog rebuilds records into the graph. Each agent becomes a region
// named after it: an existing region absorbs the agent's last event, a
// missing one is created with it as its only head.
func (w *Workspace) ImportLog(ctx context.Context, records []persist.Record) ([]string, error) {
	heads, err := persist.Rebuild(w.Store(), records)
	if err != nil {
		return nil, err
	}

	var touched []string
	for agent, head := range heads {
		incoming := region.New(w.Store(), agent, nil, head)
		if existing, err := w.coll.Get(agent); err == nil {
			if err := existing.Absorb(incoming); err != nil {
				return nil, err
			}
		} else if err := w.coll.Add(incoming); err != nil {
			return nil, err
		}
		touched = append(touched, agent)
	}
	if err := w.Sync(ctx); err != nil {
		return nil, err
	}
	slices.Sort(touched)
	return touched, nil
}
