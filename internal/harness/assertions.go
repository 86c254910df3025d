package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/query"
	"github.com/roach88/memento/internal/region"
)

// checkAssertion evaluates one assertion against the final workspace.
func (h *Harness) checkAssertion(a Assertion) error {
	coll := h.ws.Collection()

	switch a.Type {
	case AssertStoreCount:
		return expectCount("events in store", a.Count, h.ws.Store().Len())

	case AssertRegions:
		got := coll.Names()
		want := slices.Sorted(slices.Values(a.Names))
		if !slices.Equal(got, want) {
			return fmt.Errorf("expected regions %v, got %v", want, got)
		}
		return nil

	case AssertQueryCount:
		q := query.New(h.ws.Store())
		m := queryMatcher(a)
		if a.Region == "" {
			return expectCount("matching events", a.Count, len(q.Scan(m)))
		}
		r, err := coll.Get(a.Region)
		if err != nil {
			return err
		}
		return expectCount("matching events in "+a.Region, a.Count, len(q.InRegion(r, m)))
	}

	r, err := coll.Get(a.Region)
	if err != nil {
		return err
	}

	switch a.Type {
	case AssertPrompt:
		if got := r.ForPrompt(); got != a.Text {
			return fmt.Errorf("prompt mismatch\nexpected:\n%s\ngot:\n%s", a.Text, got)
		}
		return nil

	case AssertPromptContains:
		if got := r.ForPrompt(); !strings.Contains(got, a.Text) {
			return fmt.Errorf("prompt does not contain %q:\n%s", a.Text, got)
		}
		return nil

	case AssertEventCount:
		return expectCount("events in "+a.Region, a.Count, len(r.Replay()))

	case AssertHeadCount:
		return expectCount("heads of "+a.Region, a.Count, len(r.Heads()))

	case AssertDiffCount:
		other, err := coll.Get(a.Other)
		if err != nil {
			return err
		}
		return expectCount(fmt.Sprintf("events in %s not in %s", a.Region, a.Other),
			a.Count, len(region.Diff(r, other)))
	}

	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// queryMatcher ANDs the assertion's filters.
func queryMatcher(a Assertion) query.Matcher {
	var ms []query.Matcher
	if a.Text != "" {
		ms = append(ms, query.ByText(a.Text))
	}
	if a.Op != "" {
		ms = append(ms, query.ByOp(ir.Op(a.Op)))
	}
	for _, k := range slices.Sorted(maps.Keys(a.Meta)) {
		ms = append(ms, query.ByMeta{Key: k, Value: a.Meta[k]})
	}
	return query.And(ms...)
}

func expectCount(what string, want, got int) error {
	if want != got {
		return fmt.Errorf("expected %d %s, got %d", want, what, got)
	}
	return nil
}
