// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/repostats/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for request counters.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			value INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record increments the counter for name by one.
func (s *Store) Record(ctx context.Context, name string) error {
	return s.RecordN(ctx, name, 1)
}

// RecordN increments the counter for name by n, creating it on first use.
// New names are appended to the native order; existing names keep their place.
func (s *Store) RecordN(ctx context.Context, name string, n int64) error {
	if name == "" {
		return fmt.Errorf("record name is empty")
	}
	if n < 0 {
		return fmt.Errorf("record increment must be >= 0, got %d", n)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`,
		name, n)
	return err
}

// CountRecords returns the number of tracked counters.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SumRecords returns the sum of all counter values.
func (s *Store) SumRecords(ctx context.Context) (int64, error) {
	var sum int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(value), 0) FROM records`).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// FetchStats returns the counters accepted by keep, in native order.
// A nil keep returns every counter.
func (s *Store) FetchStats(ctx context.Context, keep model.EntryFilter) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM records ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Entry
	for rows.Next() {
		var entry model.Entry
		if err := rows.Scan(&entry.Name, &entry.Value); err != nil {
			return nil, err
		}
		if keep != nil && !keep(entry) {
			continue
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Reset removes every counter.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records`)
	return err
}
