// Package store provides the durable append-only event log for debtwise.
//
// The store is the sole owner of authoritative history. Everything above
// it (projections, reconciliation, optimization) is derived and
// recomputable from the log alone.
//
// Uses SQLite with WAL mode. Appends to a given account are serialized
// by a per-account lock (single writer per account); appends to
// different accounts proceed independently.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added partial UNIQUE index on events.idempotency_key
const currentSchemaVersion = 1

// Store provides durable storage for the debtwise event log.
type Store struct {
	db      *sql.DB
	locks   *accountLocks
	ids     ledger.IDGenerator
	logger  *slog.Logger
	metrics *metrics.Collector

	// maxAttempts bounds retries on same-account append races and
	// transient SQLITE_BUSY failures.
	maxAttempts int
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the event id generator (tests use a fixed one).
func WithIDGenerator(g ledger.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) { s.metrics = m }
}

// WithMaxAttempts bounds append retries. Default 5.
func WithMaxAttempts(n int) Option {
	return func(s *Store) { s.maxAttempts = n }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ledger.NewPersistenceError("open database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ledger.NewPersistenceError("connect to database", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY churn under write load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, ledger.NewPersistenceError("apply pragmas", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, ledger.NewPersistenceError("apply schema", err)
	}

	s := &Store{
		db:          db,
		locks:       newAccountLocks(),
		ids:         ledger.UUIDv7Generator{},
		logger:      slog.Default(),
		maxAttempts: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
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
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
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

// migrateToV1 adds the idempotency index for databases created before v1.
// New databases get it from schema.sql; CREATE INDEX IF NOT EXISTS makes
// this a no-op for them.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_events_idempotency
		ON events(idempotency_key) WHERE idempotency_key IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
