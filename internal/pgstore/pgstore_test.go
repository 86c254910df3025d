package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/query"
	"github.com/roach88/memento/internal/region"
)

// openTestStore connects to MEMENTO_TEST_PG_DSN and clears the tables.
func openTestStore(t *testing.T) *PgStore {
	t.Helper()
	dsn := os.Getenv("MEMENTO_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MEMENTO_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE nodes, events, heads`)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(0, 42) }
	return s
}

func chain(t *testing.T) []ir.EventNode {
	t.Helper()
	a, err := ir.NewEventNode(ir.OpObserve, "User asked", 1, map[string]string{"agent": "x"}, nil)
	require.NoError(t, err)
	b, err := ir.NewEventNode(ir.OpPlan, "look up user", 2, nil, []string{a.ID})
	require.NoError(t, err)
	c, err := ir.NewEventNode(ir.OpEffect, "db: User found", 3, map[string]string{"agent": "y"}, []string{b.ID})
	require.NoError(t, err)
	return []ir.EventNode{a, b, c}
}

func TestPgStore_NodesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := chain(t)

	require.NoError(t, s.SaveNodes(ctx, nodes))
	require.NoError(t, s.SaveNodes(ctx, nodes[:1]))

	got, err := s.LoadNodes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range nodes {
		assert.Equal(t, nodes[i].ID, got[i].ID)
		assert.NoError(t, got[i].Verify())
	}
	assert.Equal(t, map[string]string{}, got[1].Meta)
	assert.Equal(t, []string{}, got[0].Parents)
}

func TestPgStore_QueryNodesMatchesInMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := chain(t)
	require.NoError(t, s.SaveNodes(ctx, nodes))

	matchers := map[string]query.Matcher{
		"text":    query.ByText("User"),
		"op":      query.ByOp(ir.OpPlan),
		"meta":    query.ByMeta{Key: "agent", Value: "y"},
		"not":     query.Not(query.ByOp(ir.OpObserve)),
		"any":     query.Or(query.ByOp(ir.OpPlan), query.ByMeta{Key: "agent", Value: "x"}),
		"nothing": query.Or(),
	}
	for name, m := range matchers {
		t.Run(name, func(t *testing.T) {
			got, err := s.QueryNodes(ctx, m)
			require.NoError(t, err)

			var want []string
			for _, n := range nodes {
				if m.Matches(n) {
					want = append(want, n.ID)
				}
			}
			var ids []string
			for _, n := range got {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, want, ids)
		})
	}
}

func TestPgStore_EventsAndDeleteNodes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := chain(t)
	require.NoError(t, s.SaveNodes(ctx, nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		require.NoError(t, s.RecordEvent(ctx, "main", nodes[i]))
	}
	require.NoError(t, s.RecordEvent(ctx, "main", nodes[0]))

	events, err := s.RegionEvents(ctx, "main")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, nodes[0].ID, events[0].ID)

	found, err := s.QueryEvents(ctx, "main", query.ByText("User"))
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, s.DeleteNodes(ctx, []string{nodes[2].ID}))
	events, err = s.RegionEvents(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	left, err := s.LoadNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestPgStore_Regions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := chain(t)

	require.NoError(t, s.SaveRegion(ctx, region.Pointer{Name: "b", Heads: []string{nodes[2].ID}}))
	require.NoError(t, s.SaveRegion(ctx, region.Pointer{Name: "a", Meta: map[string]string{"k": "v"}}))
	require.NoError(t, s.SaveRegion(ctx, region.Pointer{Name: "b", Heads: []string{nodes[1].ID}}))

	p, err := s.RegionHeads(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{nodes[1].ID}, p.Heads)
	assert.Equal(t, map[string]string{}, p.Meta)

	all, err := s.LoadRegions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, []string{}, all[0].Heads)

	require.NoError(t, s.DeleteRegion(ctx, "a"))
	_, err = s.RegionHeads(ctx, "a")
	assert.True(t, ir.IsUnknownRegion(err))
	assert.True(t, ir.IsUnknownRegion(s.DeleteRegion(ctx, "a")))
}
