package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/dept-portal-api/pkg/cache"
	"github.com/noah-isme/dept-portal-api/pkg/config"
	"github.com/noah-isme/dept-portal-api/pkg/database"
)

// Open builds the backend selected by cfg.Store.Driver. SQL backends have
// their table created before returning.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return NewMemoryBackend(), nil
	case "", config.StoreSQLite:
		db, err := database.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqlBackend(ctx, db, config.StoreSQLite)
	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		return sqlBackend(ctx, db, config.StorePostgres)
	case config.StoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisBackend(client, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// OpenURL opens a backend from a single location string:
// "sqlite:<path>", "postgres://...", "postgresql://..." or "redis://...".
// A redis URL may carry a key prefix as the "prefix" query parameter.
func OpenURL(ctx context.Context, raw string) (Backend, error) {
	switch {
	case strings.HasPrefix(raw, "sqlite:"):
		db, err := database.NewSQLite(strings.TrimPrefix(raw, "sqlite:"))
		if err != nil {
			return nil, err
		}
		return sqlBackend(ctx, db, config.StoreSQLite)
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		db, err := sqlx.ConnectContext(ctx, "pgx", raw)
		if err != nil {
			return nil, err
		}
		return sqlBackend(ctx, db, config.StorePostgres)
	case strings.HasPrefix(raw, "redis://"), strings.HasPrefix(raw, "rediss://"):
		base, prefix, _ := strings.Cut(raw, "?prefix=")
		opts, err := redis.ParseURL(base)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisBackend(client, prefix), nil
	default:
		return nil, fmt.Errorf("unrecognised store location %q", raw)
	}
}

func sqlBackend(ctx context.Context, db *sqlx.DB, name string) (Backend, error) {
	backend := NewSQLBackend(db, name)
	if err := backend.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return backend, nil
}
