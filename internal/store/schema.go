package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var initialSchema string

// migrations[i] moves a database from user_version i to i+1. Append new
// steps; never edit a released one.
var migrations = []string{
	initialSchema,
}

// ErrNewerSchema reports a database written by a newer torrank build.
var ErrNewerSchema = errors.New("database schema is newer than this build")

// migrate brings the database up to len(migrations). The version lives in
// SQLite's user_version header field.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("%w: %s is at v%d, this build knows v%d", ErrNewerSchema, s.path, current, len(migrations))
	}
	for version := current + 1; version <= len(migrations); version++ {
		if err := s.applyMigration(ctx, version, migrations[version-1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, stmt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migrate to v%d: %w", version, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("record schema v%d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema v%d: %w", version, err)
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
