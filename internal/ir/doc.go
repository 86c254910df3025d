// Package ir defines the foundational types of memento: event nodes, the
// canonical JSON encoding used for hashing, the content-addressed identity
// function and the typed errors shared by every other package.
//
// ir imports nothing internal. All other internal packages import ir.
//
// Key design constraints:
//   - Identity is SHA-256 over RFC 8785 canonical JSON with domain separation
//   - NO float types in hashed payloads; timestamps are int64 Unix nanoseconds
//   - Parents are a set: sorted and de-duplicated before hashing
//   - All JSON tags use snake_case
package ir
