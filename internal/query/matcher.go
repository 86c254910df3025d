package query

import (
	"strings"

	"github.com/roach88/memento/internal/ir"
)

// Matcher decides whether an event belongs in a query result.
//
// Traversal code only ever calls Matches, so it is agnostic to which variant
// it holds. The predefined variants are:
//   - ByText: content contains a substring
//   - ByOp: op tag equals a value
//   - ByMeta: meta[Key] is present and equals Value
//   - Func: an arbitrary predicate
//
// and the combinators AllOf, AnyOf, Negation and Everything (built with
// And, Or, Not and All).
//
// Every variant except Func can also be compiled to SQL by package querysql.
type Matcher interface {
	Matches(n ir.EventNode) bool
}

// ByText matches events whose content contains the substring.
type ByText string

func (t ByText) Matches(n ir.EventNode) bool {
	return strings.Contains(n.Content, string(t))
}

// ByOp matches events with the given op tag.
type ByOp ir.Op

func (o ByOp) Matches(n ir.EventNode) bool {
	return n.Op == ir.Op(o)
}

// ByMeta matches events whose meta carries Key with exactly Value.
// A missing key never matches, not even an empty Value.
type ByMeta struct {
	Key   string
	Value string
}

func (m ByMeta) Matches(n ir.EventNode) bool {
	v, ok := n.Meta[m.Key]
	return ok && v == m.Value
}

// Func adapts an ordinary function to Matcher.
type Func func(ir.EventNode) bool

func (f Func) Matches(n ir.EventNode) bool {
	return f(n)
}

// AllOf matches when every member matches. An empty AllOf matches everything.
type AllOf []Matcher

func (a AllOf) Matches(n ir.EventNode) bool {
	for _, m := range a {
		if !m.Matches(n) {
			return false
		}
	}
	return true
}

// AnyOf matches when at least one member matches. An empty AnyOf matches
// nothing.
type AnyOf []Matcher

func (a AnyOf) Matches(n ir.EventNode) bool {
	for _, m := range a {
		if m.Matches(n) {
			return true
		}
	}
	return false
}

// Negation inverts M.
type Negation struct {
	M Matcher
}

func (x Negation) Matches(n ir.EventNode) bool {
	return !x.M.Matches(n)
}

// Everything matches every event.
type Everything struct{}

func (Everything) Matches(ir.EventNode) bool { return true }

// All returns a matcher that accepts every event.
func All() Matcher { return Everything{} }

// And returns a matcher that requires all of ms.
func And(ms ...Matcher) Matcher { return AllOf(ms) }

// Or returns a matcher that requires any of ms.
func Or(ms ...Matcher) Matcher { return AnyOf(ms) }

// Not returns a matcher that inverts m.
func Not(m Matcher) Matcher { return Negation{M: m} }
