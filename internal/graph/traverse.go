package graph

import (
	"container/heap"
	"maps"
	"slices"

	"github.com/roach88/memento/internal/ir"
)

// Traverse walks parent links backward from start and returns every visited
// node that m matches, each exactly once, in chronological order.
//
// An empty start walks from the store-wide heads. Unknown start ids are
// skipped. The visited set makes shared ancestors cost one visit no matter
// how many paths reach them.
func (s *Store) Traverse(start []string, m Matcher) []ir.EventNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(start) == 0 {
		start = slices.Collect(maps.Keys(s.heads))
	}

	visited := s.reachableLocked(start)
	sub := make(map[string]ir.EventNode, len(visited))
	for id := range visited {
		sub[id] = s.nodes[id]
	}
	return chronological(sub, m)
}

// Reachable returns the ids reachable from start, start included.
// Unknown ids are ignored.
func (s *Store) Reachable(start []string) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reachableLocked(start)
}

// reachableLocked is an iterative DFS over parent links. Caller holds a lock.
func (s *Store) reachableLocked(start []string) map[string]struct{} {
	visited := make(map[string]struct{})
	stack := slices.Clone(start)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[id]; seen {
			continue
		}
		node, ok := s.nodes[id]
		if !ok {
			continue
		}
		visited[id] = struct{}{}
		stack = append(stack, node.Parents...)
	}
	return visited
}

// Difference returns the nodes reachable from from but not from exclude,
// in chronological order. Unlike Traverse, an empty from yields nothing.
// Both reachable sets are computed under one read lock.
func (s *Store) Difference(from, exclude []string) []ir.EventNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	left := s.reachableLocked(from)
	right := s.reachableLocked(exclude)

	sub := make(map[string]ir.EventNode, len(left))
	for id := range left {
		if _, shared := right[id]; !shared {
			sub[id] = s.nodes[id]
		}
	}
	return chronological(sub, nil)
}

// Intersection returns the nodes reachable from both a and b, in
// chronological order.
func (s *Store) Intersection(a, b []string) []ir.EventNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	left := s.reachableLocked(a)
	right := s.reachableLocked(b)

	sub := make(map[string]ir.EventNode)
	for id := range left {
		if _, shared := right[id]; shared {
			sub[id] = s.nodes[id]
		}
	}
	return chronological(sub, nil)
}

// Order de-duplicates nodes by id and returns them in chronological order.
// It needs no store: parent links inside the slice are enough. Order is
// idempotent: Order(Order(x)) equals Order(x).
func Order(nodes []ir.EventNode) []ir.EventNode {
	set := make(map[string]ir.EventNode, len(nodes))
	for _, n := range nodes {
		if _, dup := set[n.ID]; !dup {
			set[n.ID] = n
		}
	}
	return chronological(set, nil)
}

// MinimalCover reduces a head set so that no retained id is a transitive
// ancestor of another retained id. The result is sorted and de-duplicated.
//
// An id that is reachable from another id in the set carries no information
// the other does not already imply, so it is dropped. Unknown ids cannot be
// proven to be ancestors of anything and are kept.
func (s *Store) MinimalCover(ids []string) []string {
	ids = ir.NormalizeParents(ids)

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Everything strictly below the set: walk from each member's parents.
	var below []string
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			below = append(below, n.Parents...)
		}
	}
	ancestors := s.reachableLocked(below)

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, isAncestor := ancestors[id]; !isAncestor {
			out = append(out, id)
		}
	}
	return out
}

// chronological orders nodes so that parents always precede children and,
// among nodes whose parents are all emitted, the smallest (timestamp, id)
// comes first. When timestamps agree with causality this is plain timestamp
// order; ties and skewed clocks still yield a deterministic, causal order.
//
// Only nodes matching m are returned, as clones.
func chronological(nodes map[string]ir.EventNode, m Matcher) []ir.EventNode {
	pending := make(map[string]int, len(nodes))
	kids := make(map[string][]string)
	ready := &nodeHeap{}

	for id, n := range nodes {
		inSet := 0
		for _, p := range n.Parents {
			if _, ok := nodes[p]; ok {
				inSet++
				kids[p] = append(kids[p], id)
			}
		}
		if inSet == 0 {
			*ready = append(*ready, n)
		} else {
			pending[id] = inSet
		}
	}
	heap.Init(ready)

	out := make([]ir.EventNode, 0, len(nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(ir.EventNode)
		if m == nil || m.Matches(n) {
			out = append(out, n.Clone())
		}
		for _, k := range kids[n.ID] {
			pending[k]--
			if pending[k] == 0 {
				delete(pending, k)
				heap.Push(ready, nodes[k])
			}
		}
	}
	return out
}

// nodeHeap is a min-heap of nodes keyed by (timestamp, id).
type nodeHeap []ir.EventNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp < h[j].Timestamp
	}
	return h[i].ID < h[j].ID
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(ir.EventNode)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
