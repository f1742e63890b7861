package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on events.pointer_id for per-pointer queries
const currentSchemaVersion = 1

// EventRecord is one dispatched event as persisted.
type EventRecord struct {
	Category  aggregator.Category
	PointerID pointer.ID
	Kind      pointer.DeviceKind
	Pos       pointer.Point
	PrevPos   pointer.Point
	Buttons   pointer.Buttons
	Flags     pointer.Flags

	// Owner is the name of the owning layer at dispatch time, empty when
	// the pointer was not pressed.
	Owner string
}

// CycleRecord is one recorded cycle: its sequence number and events in
// dispatch order.
type CycleRecord struct {
	Seq    int64
	Events []EventRecord
}

// Store provides durable storage for recorded pointer sessions.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under the recorder's per-cycle write cadence.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Used for testing and introspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WriteCycle persists one cycle and its events in a single transaction.
// Uses ON CONFLICT(session, seq) DO NOTHING for idempotency: replaying a
// write after a crash-recovery retry is silently ignored.
func (s *Store) WriteCycle(ctx context.Context, session string, seq int64, events []EventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write cycle: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (session, seq, event_count)
		VALUES (?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`, session, seq, len(events))
	if err != nil {
		return fmt.Errorf("write cycle: insert cycle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write cycle: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Cycle already recorded; keep the first write.
		return tx.Commit()
	}

	cycleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("write cycle: last insert id: %w", err)
	}

	for ord, ev := range events {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(cycle_id, ord, category, pointer_id, kind, x, y, prev_x, prev_y, buttons, flags, owner)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			cycleID,
			ord,
			ev.Category.String(),
			int64(ev.PointerID),
			ev.Kind.String(),
			ev.Pos.X,
			ev.Pos.Y,
			ev.PrevPos.X,
			ev.PrevPos.Y,
			int64(ev.Buttons),
			int64(ev.Flags),
			ev.Owner,
		)
		if err != nil {
			return fmt.Errorf("write cycle: insert event %d: %w", ord, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write cycle: commit: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the per-pointer event index for databases created
// before v1. New databases get it from schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_pointer
		ON events(pointer_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
