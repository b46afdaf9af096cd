// Package kvsqlite implements the conversation KV on a single SQLite table.
package kvsqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/pageai/dbopen"
)

// Schema is the complete kvsqlite schema.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// KV stores values in SQLite. Safe for concurrent use; SQLite serializes
// writers and the WAL busy timeout absorbs contention.
type KV struct {
	db *sql.DB
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*KV, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("kvsqlite: %w", err)
	}
	return &KV{db: db}, nil
}

// New wraps an already-opened database. The schema must be applied.
func New(db *sql.DB) *KV {
	return &KV{db: db}
}

// Close closes the underlying database.
func (s *KV) Close() error {
	return s.db.Close()
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvsqlite: get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("kvsqlite: set %s: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvsqlite: delete %s: %w", key, err)
	}
	return nil
}

func (s *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	// substr comparison instead of LIKE: URL keys routinely contain % and _.
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("kvsqlite: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("kvsqlite: keys scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *KV) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries`); err != nil {
		return fmt.Errorf("kvsqlite: clear: %w", err)
	}
	return nil
}
