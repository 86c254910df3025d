package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memento/internal/ir"
)

func contents(nodes []ir.EventNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Content
	}
	return out
}

func TestTraverse_DefaultsToAllHeads(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "a")
	mustAppend(t, s, ir.OpPlan, "b", a)
	mustAppend(t, s, ir.OpPlan, "c", a)

	assert.Equal(t, []string{"a", "b", "c"}, contents(s.Traverse(nil, nil)))
}

func TestTraverse_DiamondVisitsSharedAncestorOnce(t *testing.T) {
	s := createTestStore(t)
	root := mustAppend(t, s, ir.OpObserve, "root")
	left := mustAppend(t, s, ir.OpPlan, "left", root)
	right := mustAppend(t, s, ir.OpPlan, "right", root)
	join := mustAppend(t, s, ir.OpSummarize, "join", left, right)

	got := s.Traverse([]string{join}, nil)
	assert.Equal(t, []string{"root", "left", "right", "join"}, contents(got))
}

func TestTraverse_FromSubsetOnlySeesAncestors(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "a")
	b := mustAppend(t, s, ir.OpPlan, "b", a)
	mustAppend(t, s, ir.OpPlan, "sibling", a)

	assert.Equal(t, []string{"a", "b"}, contents(s.Traverse([]string{b}, nil)))
}

func TestTraverse_FilterByOp(t *testing.T) {
	s := createTestStore(t)
	h1 := mustAppend(t, s, ir.OpObserve, "a")
	h2 := mustAppend(t, s, ir.OpPlan, "b", h1)
	mustAppend(t, s, ir.OpEffect, "tool: x", h2)

	plans := s.Traverse(nil, opIs(ir.OpPlan))
	require.Len(t, plans, 1)
	assert.Equal(t, "b", plans[0].Content)
}

func TestTraverse_UnknownStartIsSkipped(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "a")

	got := s.Traverse([]string{"unknown", a}, nil)
	assert.Equal(t, []string{"a"}, contents(got))
}

func TestTraverse_TiedTimestampsStayCausal(t *testing.T) {
	s := createTestStore(t)

	// Every event shares one timestamp; order must still put parents first.
	a, err := s.AppendAt(ir.OpObserve, "a", 5, nil, nil)
	require.NoError(t, err)
	b, err := s.AppendAt(ir.OpPlan, "b", 5, nil, []string{a})
	require.NoError(t, err)
	c, err := s.AppendAt(ir.OpEffect, "c", 5, nil, []string{b})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, contents(s.Traverse([]string{c}, nil)))
}

func TestTraverse_SkewedClockStaysCausal(t *testing.T) {
	s := createTestStore(t)

	a, err := s.AppendAt(ir.OpObserve, "a", 100, nil, nil)
	require.NoError(t, err)
	b, err := s.AppendAt(ir.OpPlan, "b", 50, nil, []string{a}) // clock went backwards
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, contents(s.Traverse([]string{b}, nil)))
}

func TestTraverse_IndependentBranchesSortByTimestamp(t *testing.T) {
	s := createTestStore(t)
	root, err := s.AppendAt(ir.OpObserve, "root", 1, nil, nil)
	require.NoError(t, err)
	late, err := s.AppendAt(ir.OpPlan, "late", 30, nil, []string{root})
	require.NoError(t, err)
	early, err := s.AppendAt(ir.OpPlan, "early", 20, nil, []string{root})
	require.NoError(t, err)

	got := s.Traverse([]string{late, early}, nil)
	assert.Equal(t, []string{"root", "early", "late"}, contents(got))
}

func TestReachable(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "a")
	b := mustAppend(t, s, ir.OpPlan, "b", a)
	c := mustAppend(t, s, ir.OpPlan, "c", a)

	r := s.Reachable([]string{b})
	assert.Len(t, r, 2)
	assert.Contains(t, r, a)
	assert.Contains(t, r, b)
	assert.NotContains(t, r, c)
}

func TestMinimalCover(t *testing.T) {
	s := createTestStore(t)
	h1 := mustAppend(t, s, ir.OpObserve, "a")
	h2 := mustAppend(t, s, ir.OpPlan, "b", h1)
	h3 := mustAppend(t, s, ir.OpEffect, "c", h2)
	side := mustAppend(t, s, ir.OpPlan, "side", h1)

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"ancestor dropped", []string{h2, h3}, []string{h3}},
		{"deep ancestor dropped", []string{h1, h3}, []string{h3}},
		{"independent heads kept", []string{h3, side}, ir.NormalizeParents([]string{h3, side})},
		{"duplicates collapse", []string{h3, h3}, []string{h3}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MinimalCover(tt.in))
		})
	}
}

func TestTraverse_ConcurrentWithAppendsAndGC(t *testing.T) {
	s := createTestStore(t)
	root := mustAppend(t, s, ir.OpObserve, "root")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		parent := root
		for i := 0; i < 200; i++ {
			// GC may sweep a parent that was a head when it was read;
			// restart the chain from a fresh root when that happens.
			id, err := s.Append(ir.OpPlan, "step", nil, []string{parent})
			if err != nil {
				id, err = s.Append(ir.OpObserve, "restart", nil, nil)
				if !assert.NoError(t, err) {
					return
				}
			}
			parent = id
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}

			// Each walk sees an ancestor-closed snapshot.
			seen := make(map[string]bool)
			walk := s.Traverse(nil, nil)
			for _, n := range walk {
				seen[n.ID] = true
			}
			for _, n := range walk {
				for _, p := range n.Parents {
					assert.True(t, seen[p], "parent %s missing from walk", ir.ShortID(p))
				}
			}
			s.GC(s.Heads())
		}
	}()

	wg.Wait()
	assert.True(t, s.verifyIndex())
}

func TestDifferenceAndIntersection(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "a")
	b := mustAppend(t, s, ir.OpPlan, "b", a)
	c := mustAppend(t, s, ir.OpPlan, "c", a)

	assert.Equal(t, []string{"b"}, contents(s.Difference([]string{b}, []string{c})))
	assert.Equal(t, []string{"c"}, contents(s.Difference([]string{c}, []string{b})))
	assert.Equal(t, []string{"a"}, contents(s.Intersection([]string{b}, []string{c})))
	assert.Empty(t, s.Difference([]string{b}, []string{b}))
	assert.Empty(t, s.Difference(nil, []string{b}), "empty from yields nothing")
	assert.Equal(t, []string{"a", "b"}, contents(s.Difference([]string{b}, nil)))
}

func TestOrder_DeduplicatesAndIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "a")
	b := mustAppend(t, s, ir.OpPlan, "b", a)
	mustAppend(t, s, ir.OpEffect, "c", b)

	nodes := s.Traverse(nil, nil)
	shuffled := []ir.EventNode{nodes[2], nodes[0], nodes[1], nodes[0], nodes[2]}

	once := Order(shuffled)
	assert.Equal(t, []string{"a", "b", "c"}, contents(once))
	assert.Equal(t, once, Order(once))
}
