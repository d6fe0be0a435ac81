package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/taxsync/internal/taxonomy"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added sibling-name lookup index on terms
// 2 - Added scheduled_jobs.claimed_at (tickets held while their run is in flight)
const currentSchemaVersion = 2

// Sentinel errors returned by store operations. Wrapped; test with errors.Is.
var (
	ErrNotFound       = errors.New("term not found")
	ErrDuplicateTerm  = errors.New("a term with that name already exists under this parent")
	ErrInvalidName    = errors.New("invalid term name")
	ErrUnknownParent  = errors.New("parent term does not exist in this taxonomy")
	ErrUnmanagedWrite = errors.New("write to managed taxonomy rejected")
)

// Store is the SQLite term store.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db      *sql.DB
	managed map[taxonomy.ID]bool
	views   *viewCache
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithManaged marks taxonomies whose structure may only be changed by the
// reconciler (and, for single creations, the admin insert endpoint).
func WithManaged(ids ...taxonomy.ID) Option {
	return func(s *Store) {
		for _, id := range ids {
			s.managed[id] = true
		}
	}
}

// WithLogger sets the logger used for guard rejections and cache activity.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
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

	s := &Store{
		db:      db,
		managed: make(map[taxonomy.ID]bool),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.views = newViewCache(s)

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// IsManaged reports whether writes to id are guarded.
func (s *Store) IsManaged(id taxonomy.ID) bool {
	return s.managed[id]
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
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the (taxonomy, parent, name) index used by sibling
// duplicate checks on every create and rename.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_terms_sibling_name
		ON terms(taxonomy, parent, name)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// migrateToV2 adds the claim column to scheduled_jobs.
func migrateToV2(db *sql.DB) error {
	_, err := db.Exec(`
		ALTER TABLE scheduled_jobs
		ADD COLUMN claimed_at INTEGER NOT NULL DEFAULT 0
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
