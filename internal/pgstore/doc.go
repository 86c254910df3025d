// Package pgstore stores memento graphs and region pointers in PostgreSQL
// through a pgx connection pool.
//
// The tables mirror the SQLite store: nodes, events keyed by
// (region, timestamp, hash), and heads. Meta columns are JSONB; parent and
// head sets are TEXT[] kept sorted.
package pgstore
