// Package persist reads and writes memento state as files.
//
// Three formats are supported:
//   - region files: {"regions": {name: pointer}}, pointer state only
//   - JSONL event logs: one Record per line, rebuildable into a store
//   - full backups: {"version": 1, "nodes": [...], "regions": [...]}
//
// Every document is validated against an embedded CUE schema before it is
// decoded. Writes replace files atomically.
package persist
