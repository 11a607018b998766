// Package cache provides the byte cache used for short lived computed data.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte cache with per-entry TTL and expiry-only invalidation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DropPrefix removes every key starting with prefix.
	DropPrefix(ctx context.Context, prefix string) error
	Close() error
}
