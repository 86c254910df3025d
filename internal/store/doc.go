// Package store provides SQLite-backed durable storage for memento.
//
// Three tables hold the state:
//   - nodes: the full event graph, one row per content-addressed node
//   - events: a per-region log keyed by (region, timestamp, hash)
//   - heads: one row per region with its heads and meta
//
// # Critical Patterns
//
// Idempotent writes:
//   - nodes and events use ON CONFLICT DO NOTHING; ids are content hashes,
//     so a conflicting row always carries the same payload
//   - heads rows are upserted
//
// Deterministic query results:
//   - nodes are read ORDER BY timestamp ASC, id ASC COLLATE BINARY
//   - events are read ORDER BY timestamp ASC, hash ASC COLLATE BINARY
//
// JSON columns (meta, parents, heads) hold canonical JSON produced by
// internal/ir, so equal values are stored as equal bytes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
