// Package eventlog provides durable storage for dispatched pointer
// cycles, plus a subscriber that records live traffic and a replayer
// that feeds a recorded session back through a fresh aggregator.
//
// Storage is SQLite with WAL mode. One row per dispatched event, grouped
// under its cycle; cycle writes are transactional, so a recorded session
// never contains a half-written cycle.
//
// The recorder observes every category and buffers a cycle in memory
// between OnCycleStarted and OnCycleFinished, then writes it in a single
// transaction. Storage failures do not disturb dispatch: they are logged
// and retrievable via LastError.
package eventlog
