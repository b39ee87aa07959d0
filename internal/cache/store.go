package cache

import (
	"context"
	"time"
)

// Store is the byte-level backend behind a Cache. Implementations must
// never return an entry whose TTL has elapsed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Flush(ctx context.Context) error
	Close() error
}
