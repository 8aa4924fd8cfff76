// Package store persists per-peer sequence watermarks so duplicate
// notices are still recognized after a restart.
//
// Two backends are provided:
//
//   - MemoryStore keeps watermarks in process memory.
//   - SQLStore keeps them in a database/sql table and works with the
//     PostgreSQL, MySQL and SQLite dialects.
//
// Stores only record values; enforcing that a watermark never moves
// backwards is the caller's job.
package store
