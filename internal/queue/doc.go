// Package queue persists recordings in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema migrations, stats queries,
// heartbeat tracking, stale-recording recovery, and the status transitions
// that mirror the recording lifecycle. Alongside the recordings table it
// keeps an append-only move_records audit trail, one row per placement
// attempt, so the history of a recording survives the recording itself
// being cleared.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add new statuses or columns, add a migration under migrations/.
package queue
