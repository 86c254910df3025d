package graph

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memento/internal/ir"
)

// createTestStore creates a quiet store stamped by a logical clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return New(
		WithClock(NewLogicalClock(0)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// mustAppend appends and fails the test on error.
func mustAppend(t *testing.T, s *Store, op ir.Op, content string, parents ...string) string {
	t.Helper()
	id, err := s.Append(op, content, nil, parents)
	require.NoError(t, err)
	return id
}

func TestAppend_DuplicatePayloadIsIdempotent(t *testing.T) {
	s := createTestStore(t)

	id1, err := s.AppendAt(ir.OpObserve, "hello", 100, map[string]string{}, nil)
	require.NoError(t, err)
	id2, err := s.AppendAt(ir.OpObserve, "hello", 100, map[string]string{}, nil)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{id1}, s.Heads())
}

func TestAppend_DuplicateLeavesIndexUnchanged(t *testing.T) {
	s := createTestStore(t)
	root := mustAppend(t, s, ir.OpObserve, "root")

	child, err := s.AppendAt(ir.OpPlan, "child", 50, nil, []string{root})
	require.NoError(t, err)

	lenBefore, headsBefore, kidsBefore := s.Len(), s.Heads(), s.ChildrenOf(root)

	again, err := s.AppendAt(ir.OpPlan, "child", 50, nil, []string{root})
	require.NoError(t, err)

	assert.Equal(t, child, again)
	assert.Equal(t, lenBefore, s.Len())
	assert.Equal(t, headsBefore, s.Heads())
	assert.Equal(t, kidsBefore, s.ChildrenOf(root))
	assert.True(t, s.verifyIndex())
}

func TestAppend_MissingParentFailsWithoutInserting(t *testing.T) {
	s := createTestStore(t)
	root := mustAppend(t, s, ir.OpObserve, "root")
	ghost := ir.MustEventID(ir.OpObserve, "never stored", 1, nil, nil)

	_, err := s.Append(ir.OpPlan, "orphan", nil, []string{root, ghost})
	require.Error(t, err)
	assert.True(t, ir.IsMissingParent(err))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{root}, s.Heads())
	assert.Empty(t, s.ChildrenOf(root))
}

func TestAppend_DigestCollisionIsFatal(t *testing.T) {
	s := createTestStore(t)

	genuine, err := ir.NewEventNode(ir.OpObserve, "genuine", 1, nil, nil)
	require.NoError(t, err)

	// Plant a different payload under the genuine id.
	impostor := genuine
	impostor.Content = "impostor"
	s.nodes[genuine.ID] = impostor
	s.heads[genuine.ID] = struct{}{}

	_, err = s.AppendAt(ir.OpObserve, "genuine", 1, nil, nil)
	require.Error(t, err)
	assert.True(t, ir.IsDigestCollision(err))

	stored, ok := s.Get(genuine.ID)
	require.True(t, ok)
	assert.Equal(t, "impostor", stored.Content, "collision never resolves by overwrite")
}

func TestAppend_InvalidUTF8IsRejected(t *testing.T) {
	s := createTestStore(t)

	for _, content := range []string{"\xff", "\xfe"} {
		_, err := s.AppendAt(ir.OpObserve, content, 1, nil, nil)
		require.Error(t, err)
		assert.True(t, ir.IsInvalidPayload(err), "got %v", err)
	}
	_, err := s.AppendAt(ir.OpObserve, "ok", 1, map[string]string{"k": "\xff"}, nil)
	assert.True(t, ir.IsInvalidPayload(err))
	assert.Equal(t, 0, s.Len())
}

func TestAppend_EquivalentSpellingsAreOneEvent(t *testing.T) {
	s := createTestStore(t)

	composed, err := s.AppendAt(ir.OpObserve, "caf\u00e9", 1, map[string]string{"who": "Jos\u00e9"}, nil)
	require.NoError(t, err)
	decomposed, err := s.AppendAt(ir.OpObserve, "cafe\u0301", 1, map[string]string{"who": "Jose\u0301"}, nil)
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
	assert.Equal(t, 1, s.Len())

	stored, ok := s.Get(composed)
	require.True(t, ok)
	assert.Equal(t, "caf\u00e9", stored.Content)
	assert.Equal(t, "Jos\u00e9", stored.Meta["who"])
}

func TestAppend_HeadsFollowFrontier(t *testing.T) {
	s := createTestStore(t)

	h1 := mustAppend(t, s, ir.OpObserve, "a")
	assert.Equal(t, []string{h1}, s.Heads())

	h2 := mustAppend(t, s, ir.OpPlan, "b", h1)
	assert.Equal(t, []string{h2}, s.Heads())

	// Branch off h1: h1 already has a child so it stays out of heads.
	h3 := mustAppend(t, s, ir.OpPlan, "c", h1)
	assert.ElementsMatch(t, []string{h2, h3}, s.Heads())

	join := mustAppend(t, s, ir.OpSummarize, "join", h2, h3)
	assert.Equal(t, []string{join}, s.Heads())
	assert.ElementsMatch(t, []string{h2, h3}, s.ChildrenOf(h1))
	assert.True(t, s.verifyIndex())
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := createTestStore(t)
	id, err := s.Append(ir.OpObserve, "x", map[string]string{"k": "v"}, nil)
	require.NoError(t, err)

	n, ok := s.Get(id)
	require.True(t, ok)
	n.Meta["k"] = "mutated"

	again, _ := s.Get(id)
	assert.Equal(t, "v", again.Meta["k"])

	_, ok = s.Get("missing")
	assert.False(t, ok, "absent id is not found, not an error")
}

func TestChildrenOf_UnknownIsEmpty(t *testing.T) {
	s := createTestStore(t)
	assert.NotNil(t, s.ChildrenOf("nope"))
	assert.Empty(t, s.ChildrenOf("nope"))
}

func TestAppend_ConcurrentIdenticalPayloadConverges(t *testing.T) {
	s := createTestStore(t)
	const workers = 32

	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.AppendAt(ir.OpObserve, "same", 7, map[string]string{"a": "b"}, nil)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestAppend_ConcurrentDistinctKeepsIndexConsistent(t *testing.T) {
	s := createTestStore(t)
	root := mustAppend(t, s, ir.OpObserve, "root")
	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			parent := root
			for i := 0; i < perWorker; i++ {
				id, err := s.Append(ir.OpPlan, fmt.Sprintf("w%d-%d", w, i), nil, []string{parent})
				if !assert.NoError(t, err) {
					return
				}
				parent = id
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 1+workers*perWorker, s.Len())
	assert.Len(t, s.Heads(), workers)
	assert.True(t, s.verifyIndex())
}

func TestRestore_LoadsIntoEmptyStore(t *testing.T) {
	src := createTestStore(t)
	a := mustAppend(t, src, ir.OpObserve, "a")
	b := mustAppend(t, src, ir.OpPlan, "b", a)
	mustAppend(t, src, ir.OpEffect, "c", a)
	mustAppend(t, src, ir.OpSummarize, "d", b)

	dst := createTestStore(t)
	require.NoError(t, dst.Restore(src.Nodes()))

	assert.Equal(t, src.Len(), dst.Len())
	assert.Equal(t, src.Heads(), dst.Heads())
	assert.Equal(t, src.ChildrenOf(a), dst.ChildrenOf(a))
	assert.True(t, dst.verifyIndex())

	// Restoring again is a no-op.
	require.NoError(t, dst.Restore(src.Nodes()))
	assert.Equal(t, src.Len(), dst.Len())
}

func TestRestore_IsAtomicOnMissingParent(t *testing.T) {
	src := createTestStore(t)
	a := mustAppend(t, src, ir.OpObserve, "a")
	mustAppend(t, src, ir.OpPlan, "b", a)

	nodes := src.Nodes()
	require.Len(t, nodes, 2)

	dst := createTestStore(t)
	err := dst.Restore(nodes[1:]) // child without its parent
	require.Error(t, err)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, dst.Len())
}

func TestRestore_RejectsTamperedPayload(t *testing.T) {
	src := createTestStore(t)
	mustAppend(t, src, ir.OpObserve, "a")

	nodes := src.Nodes()
	nodes[0].Content = "tampered"

	dst := createTestStore(t)
	err := dst.Restore(nodes)
	require.Error(t, err)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, dst.Len())
}

func TestRestore_RejectsDenormalizedPayload(t *testing.T) {
	node, err := ir.NewEventNode(ir.OpObserve, "caf\u00e9", 1, nil, nil)
	require.NoError(t, err)
	node.Content = "cafe\u0301" // hashes to the same id

	dst := createTestStore(t)
	err = dst.Restore([]ir.EventNode{node})
	require.Error(t, err)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, dst.Len())
}

func TestRestore_RejectsInvalidID(t *testing.T) {
	dst := createTestStore(t)
	err := dst.Restore([]ir.EventNode{{ID: "deadbeef", Op: ir.OpObserve}})
	require.Error(t, err)
	assert.True(t, ir.IsCorruptState(err))
}

func TestScanAndSummary(t *testing.T) {
	s := createTestStore(t)
	a := mustAppend(t, s, ir.OpObserve, "User visited homepage")
	mustAppend(t, s, ir.OpPlan, "Suggest recommendations", a)

	plans := s.Scan(opIs(ir.OpPlan))
	require.Len(t, plans, 1)
	assert.Equal(t, "Suggest recommendations", plans[0].Content)

	assert.Contains(t, s.Summary(), "2 events across 1 head(s)")
}

// opIs is a minimal Matcher for tests in this package.
type opIs ir.Op

func (o opIs) Matches(n ir.EventNode) bool { return n.Op == ir.Op(o) }
