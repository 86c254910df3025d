package graph

import "slices"

// GC removes every node unreachable from keep and returns the removed ids,
// sorted, so persistence layers can mirror the sweep.
//
// Mark: reachability from the keep-set. Sweep: drop everything else, then
// rebuild the children index and heads from the surviving nodes. Ancestors of
// a kept node are reachable by definition, so they are never removed.
// Running GC twice with the same keep-set removes nothing the second time.
//
// GC holds the write lock throughout; no traversal can observe a half-swept
// graph. It also waits for every Hold to be released, see Sweep.
func (s *Store) GC(keep []string) []string {
	return s.Sweep(func() []string { return keep })
}

// Hold pins the store against sweeps until release is called. A caller that
// appends an event and then records its id somewhere roots() will see holds
// the store across both steps, so the new id is never collected in between.
//
// Holds are shared; do not call Sweep or GC while holding.
func (s *Store) Hold() (release func()) {
	s.gate.RLock()
	return s.gate.RUnlock
}

// Sweep collects everything unreachable from the ids roots returns. roots
// runs after every Hold has been released and before any new one starts, so
// the keep-set it computes is current for the whole sweep.
func (s *Store) Sweep(roots func() []string) []string {
	s.gate.Lock()
	defer s.gate.Unlock()

	keep := roots()

	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.reachableLocked(keep)

	removed := []string{}
	for id := range s.nodes {
		if _, ok := live[id]; !ok {
			delete(s.nodes, id)
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)

	s.rebuildIndexLocked()

	s.logger.Info("garbage collection finished",
		"kept", len(s.nodes),
		"removed", len(removed),
		"roots", len(keep),
	)
	return removed
}

// rebuildIndexLocked recomputes the derived children index and heads cache
// from the node table. Caller holds the write lock.
func (s *Store) rebuildIndexLocked() {
	s.children = make(map[string][]string, len(s.nodes))
	for id, n := range s.nodes {
		for _, p := range n.Parents {
			s.children[p] = append(s.children[p], id)
		}
	}

	s.heads = make(map[string]struct{})
	for id := range s.nodes {
		if len(s.children[id]) == 0 {
			s.heads[id] = struct{}{}
		}
	}
}

// verifyIndex recomputes children and heads from scratch and reports whether
// the incrementally maintained caches agree. Used by tests.
func (s *Store) verifyIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, n := range s.nodes {
		for _, p := range n.Parents {
			if !slices.Contains(s.children[p], id) {
				return false
			}
		}
	}
	for p, kids := range s.children {
		for _, k := range kids {
			n, ok := s.nodes[k]
			if !ok || !slices.Contains(n.Parents, p) {
				return false
			}
		}
	}
	for id := range s.nodes {
		_, isHead := s.heads[id]
		if isHead != (len(s.children[id]) == 0) {
			return false
		}
	}
	for id := range s.heads {
		if _, ok := s.nodes[id]; !ok {
			return false
		}
	}
	return true
}
