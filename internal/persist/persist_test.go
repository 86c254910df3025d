package persist

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/region"
)

func quietStore() *graph.Store {
	return graph.New(
		graph.WithClock(graph.NewLogicalClock(0)),
		graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// plannerWorkspace builds Planner and its Retry fork.
func plannerWorkspace(t *testing.T) *region.Collection {
	t.Helper()
	c := region.NewCollection(quietStore(), region.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	planner, err := c.New("Planner", map[string]string{"agent": "planner"})
	require.NoError(t, err)
	_, err = planner.Observe("a")
	require.NoError(t, err)
	_, err = planner.Plan("b")
	require.NoError(t, err)

	retry, err := c.Fork("Planner", "Retry")
	require.NoError(t, err)
	_, err = retry.Effect("tool", "x")
	require.NoError(t, err)
	return c
}

func TestRegions_MissingFileIsEmpty(t *testing.T) {
	ptrs, err := LoadRegions(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, ptrs)
	assert.NotNil(t, ptrs)
}

func TestRegions_RoundTrip(t *testing.T) {
	c := plannerWorkspace(t)
	path := filepath.Join(t.TempDir(), "regions.json")

	require.NoError(t, SaveCollection(path, c))

	restored := region.NewCollection(c.Store())
	require.NoError(t, LoadCollection(path, restored))

	want := c.Pointers()
	got := restored.Pointers()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "%s != %s", want[i], got[i])
	}

	planner, err := restored.Get("Planner")
	require.NoError(t, err)
	assert.Equal(t, "[OBSERVE] a\n[PLAN] b", planner.ForPrompt())
}

func TestRegions_EmptyRegionEncodesEmptyArrays(t *testing.T) {
	data, err := EncodeRegions([]region.Pointer{{Name: "fresh"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"regions":{"fresh":{"name":"fresh","meta":{},"heads":[]}}}`, string(data))
}

func TestRegions_EncodeRejectsDuplicates(t *testing.T) {
	_, err := EncodeRegions([]region.Pointer{{Name: "x"}, {Name: "x"}})
	assert.True(t, ir.IsDuplicateRegion(err))
}

func TestRegions_InvalidDocuments(t *testing.T) {
	id := strings.Repeat("ab", 32)
	tests := map[string]string{
		"not json":         `{"regions":`,
		"missing regions":  `{}`,
		"bad head":         `{"regions":{"a":{"name":"a","meta":{},"heads":["xyz"]}}}`,
		"name mismatch":    `{"regions":{"a":{"name":"b","meta":{},"heads":[]}}}`,
		"empty name":       `{"regions":{"":{"name":"","meta":{},"heads":[]}}}`,
		"non-string meta":  `{"regions":{"a":{"name":"a","meta":{"n":1},"heads":[]}}}`,
		"unknown field":    `{"regions":{"a":{"name":"a","meta":{},"heads":[],"extra":true}}}`,
		"heads not a list": `{"regions":{"a":{"name":"a","meta":{},"heads":"` + id + `"}}}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			ptrs, err := DecodeRegions([]byte(doc))
			require.Error(t, err)
			assert.True(t, ir.IsCorruptState(err), "got %v", err)
			assert.Nil(t, ptrs)
		})
	}
}

func TestRegions_MetaIsOptional(t *testing.T) {
	id := strings.Repeat("ab", 32)
	ptrs, err := DecodeRegions([]byte(`{"regions":{"a":{"name":"a","heads":["` + id + `"]}}}`))
	require.NoError(t, err)
	require.Len(t, ptrs, 1)
	assert.Equal(t, map[string]string{}, ptrs[0].Meta)
	assert.Equal(t, []string{id}, ptrs[0].Heads)
}

func TestRegions_FailedLoadLeavesCollectionAlone(t *testing.T) {
	c := plannerWorkspace(t)
	path := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"regions":{"a":{"name":"a","heads":["nope"]}}}`), 0o644))

	err := LoadCollection(path, c)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, []string{"Planner", "Retry"}, c.Names())
}

func TestLog_RoundTripRebuildsSameGraph(t *testing.T) {
	c := plannerWorkspace(t)
	retry, err := c.Get("Retry")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, RecordsFor("Retry", retry.Replay())))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	records, err := ReadLog(&buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Retry", records[0].Agent)

	fresh := quietStore()
	heads, err := Rebuild(fresh, records)
	require.NoError(t, err)
	assert.Equal(t, retry.Heads(), []string{heads["Retry"]})
	assert.Equal(t, retry.Replay(), fresh.Traverse(nil, nil))
}

func TestLog_RecordsWithoutIDsChainPerAgent(t *testing.T) {
	input := strings.Join([]string{
		`{"op":"observe","content":"a1","timestamp":1,"agent":"a","meta":{}}`,
		`{"op":"observe","content":"b1","timestamp":2,"agent":"b","meta":{}}`,
		``,
		`{"op":"plan","content":"a2","timestamp":3,"agent":"a","meta":{"k":"v"}}`,
	}, "\n")

	records, err := ReadLog(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	s := quietStore()
	heads, err := Rebuild(s, records)
	require.NoError(t, err)
	require.Len(t, heads, 2)

	a2, ok := s.Get(heads["a"])
	require.True(t, ok)
	assert.Equal(t, "a2", a2.Content)
	assert.Equal(t, map[string]string{"k": "v"}, a2.Meta)
	require.Len(t, a2.Parents, 1)

	a1, ok := s.Get(a2.Parents[0])
	require.True(t, ok)
	assert.Equal(t, "a1", a1.Content)
	assert.Empty(t, a1.Parents)

	b1, ok := s.Get(heads["b"])
	require.True(t, ok)
	assert.Empty(t, b1.Parents)
}

func TestLog_IDMismatchIsCorrupt(t *testing.T) {
	wrong := strings.Repeat("0", 64)
	records := []Record{
		{Op: ir.OpObserve, Content: "ok", Timestamp: 1, Agent: "a"},
		{Op: ir.OpObserve, Content: "tampered", Timestamp: 2, Agent: "a", ID: wrong},
	}

	s := quietStore()
	_, err := Rebuild(s, records)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, s.Len())
}

func TestLog_MissingParentIsCorrupt(t *testing.T) {
	records := []Record{
		{Op: ir.OpObserve, Content: "orphan", Timestamp: 1, Agent: "a", Parents: []string{strings.Repeat("1", 64)}},
	}

	s := quietStore()
	_, err := Rebuild(s, records)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, s.Len())
}

func TestLog_BadLineNamesLineNumber(t *testing.T) {
	input := `{"op":"observe","content":"a","timestamp":1,"agent":"a"}` + "\n" +
		`{"op":"","content":"b","timestamp":2,"agent":"a"}` + "\n"

	_, err := ReadLog(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, ir.IsCorruptState(err))
	assert.Contains(t, err.Error(), "log line 2")
}

func TestLog_FloatTimestampRejected(t *testing.T) {
	_, err := ReadLog(strings.NewReader(`{"op":"observe","content":"a","timestamp":1.5,"agent":"a"}`))
	assert.True(t, ir.IsCorruptState(err))
}

func TestBackup_RoundTrip(t *testing.T) {
	c := plannerWorkspace(t)
	path := filepath.Join(t.TempDir(), "backup.json")

	require.NoError(t, WriteBackup(path, c))

	restored, err := Restore(path, graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	assert.Equal(t, c.Store().Nodes(), restored.Store().Nodes())
	assert.Equal(t, c.Names(), restored.Names())
	for _, name := range c.Names() {
		want, err := c.Get(name)
		require.NoError(t, err)
		got, err := restored.Get(name)
		require.NoError(t, err)
		assert.Equal(t, want.Heads(), got.Heads())
		assert.Equal(t, want.Meta(), got.Meta())
		assert.Equal(t, want.ForPrompt(), got.ForPrompt())
	}
}

func TestBackup_ApplyChecksHeadsFirst(t *testing.T) {
	c := plannerWorkspace(t)
	b := Snapshot(c)
	b.Regions = append(b.Regions, region.Pointer{
		Name:  "Dangling",
		Meta:  map[string]string{},
		Heads: []string{strings.Repeat("f", 64)},
	})

	target := region.NewCollection(quietStore())
	err := b.Apply(target)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, target.Store().Len())
	assert.Equal(t, 0, target.Len())
}

func TestBackup_InvalidDocuments(t *testing.T) {
	tests := map[string]string{
		"wrong version": `{"version":2,"nodes":[],"regions":[]}`,
		"missing nodes": `{"version":1,"regions":[]}`,
		"bad node id":   `{"version":1,"nodes":[{"id":"x","op":"observe","content":"","timestamp":1,"meta":{},"parents":[]}],"regions":[]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBackup([]byte(doc))
			assert.True(t, ir.IsCorruptState(err), "got %v", err)
		})
	}
}

func TestBackup_TamperedNodeIsRejected(t *testing.T) {
	c := plannerWorkspace(t)
	b := Snapshot(c)
	b.Nodes[0].Content = "rewritten"

	target := region.NewCollection(quietStore())
	err := b.Apply(target)
	assert.True(t, ir.IsCorruptState(err))
	assert.Equal(t, 0, target.Store().Len())
}
