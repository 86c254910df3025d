package region

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
)

// Collection is a named set of regions over one store. It replaces a
// process-wide registry: callers own a Collection and pass it around.
//
// Thread-safety: all methods are safe for concurrent use. The collection's
// lock guards only the name table; each Region guards its own heads.
type Collection struct {
	mu      sync.RWMutex
	store   *graph.Store
	regions map[string]*Region
	names   NameGenerator
	logger  *slog.Logger
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithNameGenerator sets the generator used for unnamed forks and merges.
func WithNameGenerator(g NameGenerator) CollectionOption {
	return func(c *Collection) { c.names = g }
}

// WithLogger sets the collection's logger.
func WithLogger(l *slog.Logger) CollectionOption {
	return func(c *Collection) { c.logger = l }
}

// NewCollection creates an empty collection over store.
func NewCollection(store *graph.Store, opts ...CollectionOption) *Collection {
	c := &Collection{
		store:   store,
		regions: make(map[string]*Region),
		names:   UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store every region in the collection points into.
func (c *Collection) Store() *graph.Store { return c.store }

// New creates an empty region and adds it.
func (c *Collection) New(name string, meta map[string]string) (*Region, error) {
	r := New(c.store, name, meta)
	if err := c.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Add registers r. It fails with DUPLICATE_REGION when the name is taken
// and with STORE_MISMATCH when r points into a different store.
func (c *Collection) Add(r *Region) error {
	if r.store != c.store {
		return ir.NewStoreMismatchError(r.name, "collection")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.regions[r.name]; exists {
		return ir.NewDuplicateRegionError(r.name)
	}
	c.regions[r.name] = r
	return nil
}

// Put registers r, replacing any region with the same name.
func (c *Collection) Put(r *Region) error {
	if r.store != c.store {
		return ir.NewStoreMismatchError(r.name, "collection")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.regions[r.name] = r
	return nil
}

// Get returns the named region or UNKNOWN_REGION.
func (c *Collection) Get(name string) (*Region, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.regions[name]
	if !ok {
		return nil, ir.NewUnknownRegionError(name)
	}
	return r, nil
}

// Delete removes the named region. Its events stay in the store until GC.
func (c *Collection) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.regions[name]; !ok {
		return ir.NewUnknownRegionError(name)
	}
	delete(c.regions, name)
	return nil
}

// Names returns the region names, sorted.
func (c *Collection) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.regions))
	for name := range c.regions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns the regions sorted by name.
func (c *Collection) List() []*Region {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Region, 0, len(c.regions))
	for _, r := range c.regions {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Region) int { return strings.Compare(a.name, b.name) })
	return out
}

// Len returns the number of regions.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regions)
}

// Fork forks src into a new registered region. An empty newName becomes
// "<src>-<generated>".
func (c *Collection) Fork(src, newName string) (*Region, error) {
	parent, err := c.Get(src)
	if err != nil {
		return nil, err
	}
	if newName == "" {
		newName = src + "-" + c.names.Generate()
	}

	f := parent.Fork(newName)
	if err := c.Add(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Merge merges regions a and b into a new registered region. An empty
// newName becomes "<a>+<b>-<generated>".
func (c *Collection) Merge(a, b, newName string) (*Region, error) {
	left, err := c.Get(a)
	if err != nil {
		return nil, err
	}
	right, err := c.Get(b)
	if err != nil {
		return nil, err
	}
	if newName == "" {
		newName = a + "+" + b + "-" + c.names.Generate()
	}

	m, err := left.Merge(right, newName)
	if err != nil {
		return nil, err
	}
	if err := c.Add(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Roots returns the union of every region's heads, sorted. This is the
// keep-set for GC.
func (c *Collection) Roots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var roots []string
	for _, r := range c.regions {
		roots = append(roots, r.Heads()...)
	}
	return ir.NormalizeParents(roots)
}

// GC removes every event not reachable from some region's heads and returns
// the removed ids. Region appends in flight finish before the roots are read,
// so a head published by an append is always kept.
func (c *Collection) GC() []string {
	removed := c.store.Sweep(c.Roots)
	c.logger.Info("collection gc", "regions", c.Len(), "removed", len(removed))
	return removed
}

// Pointers snapshots every region, sorted by name.
func (c *Collection) Pointers() []Pointer {
	regions := c.List()
	out := make([]Pointer, len(regions))
	for i, r := range regions {
		out[i] = r.Pointer()
	}
	return out
}

// LoadPointers replaces the collection's contents with regions built from
// ptrs. Every pointer is validated before anything changes; on error the
// collection is left as it was.
func (c *Collection) LoadPointers(ptrs []Pointer) error {
	next := make(map[string]*Region, len(ptrs))
	for _, p := range ptrs {
		r, err := FromPointer(c.store, p)
		if err != nil {
			return err
		}
		if _, dup := next[p.Name]; dup {
			return ir.NewCorruptStateError(p.Name, "region listed twice")
		}
		next[p.Name] = r
	}

	c.mu.Lock()
	c.regions = next
	c.mu.Unlock()

	c.logger.Debug("regions loaded", "count", len(next))
	return nil
}

// Summary lists every region with its short heads.
func (c *Collection) Summary() string {
	regions := c.List()

	var b strings.Builder
	fmt.Fprintf(&b, "%d region(s)", len(regions))
	for _, r := range regions {
		heads := r.Heads()
		short := make([]string, len(heads))
		for i, h := range heads {
			short[i] = ir.ShortID(h)
		}
		fmt.Fprintf(&b, "\n - %s: %s", r.name, strings.Join(short, ", "))
	}
	return b.String()
}
