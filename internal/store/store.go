package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"torrank/internal/config"
)

// Store manages rule persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the configured database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath initializes or connects to the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Health summarizes database state for status output.
type Health struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schema_version"`
	Groups        int    `json:"groups"`
	CustomRules   int    `json:"custom_rules"`
	Error         string `json:"error,omitempty"`
}

// Health pings the database and counts stored rows.
func (s *Store) Health(ctx context.Context) (Health, error) {
	health := Health{Path: s.path}
	if s.db == nil {
		return health, errors.New("rule database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping rule database: %w", err)
	}
	version, err := s.schemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version
	counts := []struct {
		table string
		dest  *int
	}{
		{"rule_groups", &health.Groups},
		{"custom_rules", &health.CustomRules},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(connCtx, `SELECT COUNT(1) FROM `+c.table).Scan(c.dest); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return health, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
