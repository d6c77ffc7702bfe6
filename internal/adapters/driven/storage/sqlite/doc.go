// Package sqlite provides the SQLite-backed delivery history, digest archive
// and run lock.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements three store interfaces
// through a single database connection:
//
//   - HistoryStore: Delivery history persistence
//   - DigestArchive: Recent payloads per profile, for resending
//   - RunLock: Cross-process guard against overlapping runs
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-digest/data/digest.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
