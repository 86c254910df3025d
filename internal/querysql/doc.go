// Package querysql compiles query.Matcher values to parameterized SQL so the
// relational backends can filter events without loading them.
//
// Both the SQLite and Postgres dialects are supported. Matchers that wrap Go
// functions cannot be compiled; callers fall back to loading the events and
// matching in memory.
package querysql
