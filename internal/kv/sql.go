package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	createTableQuery = `CREATE TABLE IF NOT EXISTS kv_store (
	store_key TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	loadQuery   = `SELECT payload FROM kv_store WHERE store_key = ?`
	upsertQuery = `INSERT INTO kv_store (store_key, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT (store_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	keysQuery = `SELECT store_key FROM kv_store ORDER BY store_key ASC`
)

// SQLBackend stores documents in a single kv_store table. It works against
// PostgreSQL (lib/pq or pgx) and SQLite; placeholders are rebound per driver.
type SQLBackend struct {
	db   *sqlx.DB
	name string
}

// NewSQLBackend wraps an open database handle. Call EnsureSchema before use.
func NewSQLBackend(db *sqlx.DB, name string) *SQLBackend {
	if name == "" {
		name = db.DriverName()
	}
	return &SQLBackend{db: db, name: name}
}

// EnsureSchema creates the kv_store table if it does not exist.
func (b *SQLBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("create kv_store table: %w", err)
	}
	return nil
}

func (b *SQLBackend) Name() string { return b.name }

func (b *SQLBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var payload string
	if err := b.db.GetContext(ctx, &payload, b.db.Rebind(loadQuery), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return []byte(payload), nil
}

func (b *SQLBackend) Save(ctx context.Context, key string, value []byte) error {
	if _, err := b.db.ExecContext(ctx, b.db.Rebind(upsertQuery), key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := b.db.SelectContext(ctx, &keys, keysQuery); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (b *SQLBackend) Close() error { return b.db.Close() }
