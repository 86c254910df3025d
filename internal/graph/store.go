package graph

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/memento/internal/ir"
)

// Matcher selects events during traversal. A nil Matcher matches everything.
// The predicate variants live in package query.
type Matcher interface {
	Matches(ir.EventNode) bool
}

// Store is the in-memory Merkle-DAG of events.
//
// It owns every EventNode, a children index derived from parent links and a
// heads cache (ids without a recorded child). Regions only hold ids into it.
//
// Thread-safety model:
//   - Append, GC and Restore take the write lock for the whole operation, so
//     the existence check, insertion, children index and heads update are one
//     indivisible step.
//   - Traversals hold the read lock for their whole walk, so GC can never
//     sweep a node out from under an in-flight traversal.
//   - gate orders head updates against sweeps. Hold pins the store for a
//     caller that appends and then publishes the new id as a root; Sweep
//     excludes every holder while it computes roots and collects.
//
// INVARIANTS:
//   - Every parent of a stored node is stored (no forward references)
//   - A node's id always matches its payload
//   - heads == {id in nodes | children[id] is empty}
type Store struct {
	gate     sync.RWMutex
	mu       sync.RWMutex
	nodes    map[string]ir.EventNode
	children map[string][]string
	heads    map[string]struct{}

	clock  Clock
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used by Append. Defaults to WallClock.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Logger returns the store's logger. Regions log through it.
func (s *Store) Logger() *slog.Logger { return s.logger }

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		nodes:    make(map[string]ir.EventNode),
		children: make(map[string][]string),
		heads:    make(map[string]struct{}),
		clock:    WallClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stamps an event with the store clock and inserts it.
// See AppendAt for the insertion contract.
func (s *Store) Append(op ir.Op, content string, meta map[string]string, parents []string) (string, error) {
	return s.AppendAt(op, content, s.clock.Now(), meta, parents)
}

// AppendAt inserts an event with an explicit timestamp and returns its id.
//
// Every parent must already be stored, otherwise a MissingParent error is
// returned and nothing changes. Appending a payload that is already stored
// returns the existing id and changes nothing: duplicate appends are the
// idempotence contract, not an error. A different payload hashing to an
// existing id fails with DigestCollisionSuspected.
func (s *Store) AppendAt(op ir.Op, content string, timestamp int64, meta map[string]string, parents []string) (string, error) {
	node, err := ir.NewEventNode(op, content, timestamp, meta, parents)
	if err != nil {
		return "", fmt.Errorf("append: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted, err := s.insertLocked(node)
	if err != nil {
		return "", fmt.Errorf("append: %w", err)
	}

	if inserted {
		s.logger.Debug("event appended",
			"id", ir.ShortID(node.ID),
			"op", node.Op,
			"parents", len(node.Parents),
		)
	} else {
		s.logger.Debug("event already stored (idempotent)", "id", ir.ShortID(node.ID))
	}

	return node.ID, nil
}

// insertLocked validates and inserts one node. Caller holds the write lock.
// Nothing is mutated unless every check passes.
func (s *Store) insertLocked(node ir.EventNode) (bool, error) {
	for _, p := range node.Parents {
		if _, ok := s.nodes[p]; !ok {
			return false, ir.NewMissingParentError(p)
		}
	}

	if existing, ok := s.nodes[node.ID]; ok {
		if !ir.SamePayload(existing, node) {
			return false, ir.NewDigestCollisionError(node.ID)
		}
		return false, nil
	}

	s.nodes[node.ID] = node
	for _, p := range node.Parents {
		s.children[p] = append(s.children[p], node.ID)
		delete(s.heads, p)
	}
	s.heads[node.ID] = struct{}{}
	return true, nil
}

// Get returns a copy of the node stored under id.
// An absent id is a normal "not found" result, not an error.
func (s *Store) Get(id string) (ir.EventNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return ir.EventNode{}, false
	}
	return n.Clone(), true
}

// Has reports whether id is stored.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Len returns the number of stored nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Heads returns the store-wide frontier, sorted.
func (s *Store) Heads() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.heads))
}

// ChildrenOf returns the ids that name id as a parent, sorted.
// Returns an empty slice (not nil) for leaves and unknown ids.
func (s *Store) ChildrenOf(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.children[id])
	if out == nil {
		return []string{}
	}
	slices.Sort(out)
	return out
}

// Nodes returns a copy of every stored node in chronological order.
func (s *Store) Nodes() []ir.EventNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chronological(s.nodes, nil)
}

// Scan returns every stored node matching m, reachable or not, in
// chronological order.
func (s *Store) Scan(m Matcher) []ir.EventNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chronological(s.nodes, m)
}

// Summary describes the store in one line.
func (s *Store) Summary() string {
	heads := s.Heads()
	short := make([]string, len(heads))
	for i, h := range heads {
		short[i] = ir.ShortID(h)
	}
	return fmt.Sprintf("%d events across %d head(s). Heads: %v", s.Len(), len(heads), short)
}

// Restore bulk-loads nodes, typically from a backup or a database.
//
// The load is atomic: every id is recomputed from its payload, every parent
// must resolve within the store or the batch, and on any failure the store is
// left untouched and a CorruptPersistedState error is returned. Nodes already
// present with an equal payload are skipped.
func (s *Store) Restore(nodes []ir.EventNode) error {
	pending := make(map[string]ir.EventNode, len(nodes))
	for i, n := range nodes {
		if !ir.ValidID(n.ID) {
			return ir.NewCorruptStateError(fmt.Sprintf("node[%d]", i), "invalid id %q", n.ID)
		}
		n = n.Clone()
		n.Parents = ir.NormalizeParents(n.Parents)
		if err := n.Verify(); err != nil {
			return ir.NewCorruptStateError(fmt.Sprintf("node[%d]", i), "%v", err)
		}
		pending[n.ID] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range pending {
		if existing, ok := s.nodes[id]; ok {
			if !ir.SamePayload(existing, n) {
				return ir.NewDigestCollisionError(id)
			}
			delete(pending, id)
		}
	}
	for id, n := range pending {
		for _, p := range n.Parents {
			_, stored := s.nodes[p]
			_, batched := pending[p]
			if !stored && !batched {
				return ir.NewCorruptStateError(ir.ShortID(id), "parent %s not found", ir.ShortID(p))
			}
		}
	}

	// Parents precede children in chronological order, so every insert
	// below finds its parents and cannot fail.
	for _, n := range chronological(pending, nil) {
		if _, err := s.insertLocked(n); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	s.logger.Info("store restored", "nodes", len(pending), "total", len(s.nodes))
	return nil
}
