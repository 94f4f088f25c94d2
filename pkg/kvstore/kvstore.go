// Package kvstore provides the key-value persistence used for ingestion
// cursors and day buckets. Keys are flat strings namespaced by market; values
// are opaque bytes.
package kvstore

import (
	"context"
	"fmt"

	"tradehistory/config"
)

// Store is the minimal contract the trade store and cursor store rely on.
// Get returns (nil, nil) for an absent key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig, env string) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisStore(ctx, cfg.Redis, env)
	case "postgres":
		return NewPostgresStore(cfg.Postgres, env, true)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
