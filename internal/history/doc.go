// Package history persists one record per encode attempt in a SQLite
// ledger under the state directory.
//
// Records are append-only: batch coordination writes one row as each
// file finishes, so an interrupted run still leaves the completed files
// on record. Retention is by row count, applied explicitly rather than
// on every write.
package history
