// Package graph implements the shared event store: an append-only,
// content-addressed Merkle-DAG of ir.EventNode values.
//
// The store owns the nodes, a children index derived from parent links and a
// cache of heads (nodes without children). It provides the primitives the
// region layer builds on:
//
//   - Append / AppendAt: atomic, idempotent insertion with parent validation
//   - Traverse / Reachable: backward walks with a visited set
//   - MinimalCover: head-set reduction used by merge
//   - GC: mark-and-sweep from a caller-supplied keep-set
//   - Restore: atomic bulk load from persisted nodes
//
// # Ordering
//
// Walks return nodes in chronological order: parents before children, and
// otherwise ascending (timestamp, id). Timestamps are not unique; the id
// tie-break keeps results deterministic.
package graph
