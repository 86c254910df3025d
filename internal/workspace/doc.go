// Package workspace keeps a region collection and its graph in sync with a
// relational backend.
//
// A Workspace is opened from a Backend (the SQLite store or the Postgres
// store), rebuilds the in-memory graph and regions from it, and writes
// through every mutation: new nodes, the per-region event log and the
// region's head pointer. GC sweeps are mirrored with DeleteNodes.
package workspace
