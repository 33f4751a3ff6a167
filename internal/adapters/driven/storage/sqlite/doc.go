// Package sqlite provides a SQLite-based implementation of the driven storage
// ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements several store interfaces
// through a single database connection:
//
//   - AccountStore: connected accounts and their tokens
//   - ItemStore: imported emails, tweets and drive files
//   - SchedulerStore: background task state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-connect/data/connect.db
//
// # Thread Safety
//
// All operations are safe for concurrent use, including from several
// processes sharing one database file. Item upserts are single
// INSERT ... ON CONFLICT statements. Account updates and deletes run in
// BEGIN IMMEDIATE transactions, so the read inside an update already holds
// the write lock and a concurrent update sees its committed result.
package sqlite
