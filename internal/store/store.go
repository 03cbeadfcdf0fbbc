// Package store is the embedded analytical store: a single DuckDB
// connection shared by every reader, with writes serialized through a
// mutex so the Bronze/Silver/Gold invariants never see a partial batch.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"salesanalytics/internal/logger"
)

// Store wraps the DuckDB connection. Reads may run concurrently (DuckDB
// serves concurrent reads from one connection fine); writes take wMu so a
// multi-statement upsert is never interleaved with another writer.
type Store struct {
	db  *sql.DB
	wMu sync.Mutex
}

// Open opens (or creates) the DuckDB file at path and applies the schema.
// An empty path opens an in-memory database, used by tests.
func Open(path string) (*Store, error) {
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	} else {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// DuckDB's Go driver is happiest with a single connection: it avoids
	// cross-connection catalog contention during schema/DDL changes and
	// gives us the single-writer discipline the spec requires for free.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Success("STORE", fmt.Sprintf("opened %s", displayPath(path)))
	return s, nil
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w\n%s", err, stmt)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for packages (query layer) that need
// read-only ad hoc SQL beyond the typed operations below.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx serializes writers, opens a transaction, runs fn, and commits.
// Any error rolls the transaction back untouched — the batch either lands
// whole or not at all, per spec §4.1's transactional failure semantics.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.wMu.Lock()
	defer s.wMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SetSyncMetadata upserts a sync_metadata key/value pair.
func (s *Store) SetSyncMetadata(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_metadata (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, time.Now().UTC())
		return err
	})
}

// GetSyncMetadata reads a sync_metadata value, returning ok=false if absent.
func (s *Store) GetSyncMetadata(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key = ?`, key)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
