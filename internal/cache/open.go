package cache

import (
	"context"
	"fmt"
	"time"

	"go-pos-api/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Open builds the cache selected by CACHE_DRIVER. The none driver returns a
// nil *Cache, which every caller treats as disabled.
func Open(ctx context.Context, cfg *config.Config, recorder Recorder, log *zap.Logger) (*Cache, error) {
	opts := Options{
		ProductTTL: cfg.CacheProductTTL,
		ListTTL:    cfg.CacheListTTL,
		Recorder:   recorder,
		Logger:     log,
	}

	switch cfg.CacheDriver {
	case "none":
		return nil, nil
	case "memory", "":
		return New(NewMemoryStore(cfg.CacheCleanup), opts), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := NewRedisStore(client, KeyPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return New(store, opts), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.CacheDriver)
	}
}
