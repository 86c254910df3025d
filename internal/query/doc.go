// Package query provides predicate variants and filtered traversals over the
// event graph.
package query
