// Package db defines the storage facade the repositories consume.
package db

import (
	"context"
	"time"
)

// Store is the database facade. Consumers depend on the narrow
// sub-interfaces (ISP); drivers implement the whole facade.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides the key-value operations the repositories need:
// opaque values, TTLs, prefix scans, and an atomic counter for the
// modification-stamp sequence.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scan returns the keys matching pattern. Patterns are literal prefixes
	// with a trailing '*'.
	Scan(ctx context.Context, pattern string) ([]string, error)
	// IncrBy atomically increments a counter key and returns the new value.
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}
