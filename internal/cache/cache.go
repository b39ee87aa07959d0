package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultProductTTL = 600 * time.Second
	DefaultListTTL    = 300 * time.Second
)

// Recorder receives hit and miss notifications, usually Prometheus counters.
type Recorder interface {
	CacheHit(entity string)
	CacheMiss(entity string)
}

type Options struct {
	ProductTTL time.Duration
	ListTTL    time.Duration
	Recorder   Recorder
	Logger     *zap.Logger
}

// Cache is a read-through JSON cache over a Store. A nil *Cache is valid and
// behaves as a disabled cache: reads always go to the loader and
// invalidation is a no-op.
//
// Store failures are logged and treated as misses; the cache never decides
// the outcome of a request.
type Cache struct {
	store      Store
	productTTL time.Duration
	listTTL    time.Duration
	recorder   Recorder
	log        *zap.Logger
	group      singleflight.Group
}

func New(store Store, opts Options) *Cache {
	if opts.ProductTTL <= 0 {
		opts.ProductTTL = DefaultProductTTL
	}
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		store:      store,
		productTTL: opts.ProductTTL,
		listTTL:    opts.ListTTL,
		recorder:   opts.Recorder,
		log:        opts.Logger.Named("cache"),
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.store != nil
}

func (c *Cache) ProductTTL() time.Duration {
	if c == nil {
		return DefaultProductTTL
	}
	return c.productTTL
}

func (c *Cache) ListTTL() time.Duration {
	if c == nil {
		return DefaultListTTL
	}
	return c.listTTL
}

// Get decodes the entry at key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		_ = c.store.Delete(ctx, key)
		return false, err
	}
	return true, nil
}

// Set stores value as JSON for ttl.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, raw, ttl)
}

// FetchJSON fills dest from the entry at key, or from loader on a miss and
// then stores the result for ttl. Concurrent misses on one key share a
// single loader call until the tenant is invalidated; a load that overlaps
// an invalidation never leaves its result in the store. The value always
// goes through a JSON round trip, so callers see the same shape with or
// without a cache.
func (c *Cache) FetchJSON(ctx context.Context, key string, ttl time.Duration, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if !c.enabled() {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}

	entity := entityOf(key)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		if err := json.Unmarshal(raw, dest); err == nil {
			c.hit(entity)
			return nil
		}
		c.log.Warn("dropping undecodable cache entry", zap.String("key", key))
		_ = c.store.Delete(ctx, key)
	}
	c.miss(entity)

	tenant := tenantOf(key)
	gen := c.generation(ctx, tenant)
	v, err, _ := c.group.Do(key+"#"+gen, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if c.generation(ctx, tenant) != gen {
			return encoded, nil
		}
		if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
			c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			return encoded, nil
		}
		// An invalidation between the check and the write may have missed
		// this entry; drop it so the next read loads again.
		if c.generation(ctx, tenant) != gen {
			if err := c.store.Delete(ctx, key); err != nil {
				c.log.Warn("dropping superseded cache entry failed", zap.String("key", key), zap.Error(err))
			}
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}

// generation returns the tenant's current invalidation token. A read error
// yields a fresh token so the caller treats its load as superseded.
func (c *Cache) generation(ctx context.Context, tenant string) string {
	raw, _, err := c.store.Get(ctx, generationKey(tenant))
	if err != nil {
		c.log.Warn("cache generation read failed", zap.String("tenant", tenant), zap.Error(err))
		return uuid.NewString()
	}
	return string(raw)
}

// bump replaces the tenant's token. It runs before entries are deleted, so
// a load that started earlier either writes before the delete or sees the
// new token after its write.
func (c *Cache) bump(ctx context.Context, tenantID uuid.UUID) error {
	return c.store.Set(ctx, generationKey(tenantID.String()), []byte(uuid.NewString()), generationTTL)
}

// Invalidate removes the product entry and every listing of the tenant that
// could contain it.
func (c *Cache) Invalidate(ctx context.Context, productID, tenantID uuid.UUID) error {
	if !c.enabled() {
		return nil
	}
	var errs []error
	if err := c.bump(ctx, tenantID); err != nil {
		errs = append(errs, err)
	}
	if productID != uuid.Nil {
		if err := c.store.Delete(ctx, ProductKey(tenantID, productID)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, entity := range listEntities {
		if _, err := c.store.DeletePrefix(ctx, entityPrefix(entity, tenantID)); err != nil {
			errs = append(errs, err)
		}
	}
	return c.logged("invalidate", tenantID, errors.Join(errs...))
}

// InvalidateTenant removes every entry of the tenant.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	if !c.enabled() {
		return nil
	}
	if err := c.bump(ctx, tenantID); err != nil {
		return c.logged("invalidate_tenant", tenantID, err)
	}
	n, err := c.store.DeletePrefix(ctx, tenantPrefix(tenantID))
	if err == nil {
		c.log.Debug("tenant cache cleared", zap.Stringer("tenant_id", tenantID), zap.Int("keys", n))
	}
	return c.logged("invalidate_tenant", tenantID, err)
}

// Flush drops every entry.
func (c *Cache) Flush(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.store.Flush(ctx)
}

// Close releases the store.
func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) logged(op string, tenantID uuid.UUID, err error) error {
	if err != nil {
		c.log.Error("cache invalidation failed", zap.String("op", op), zap.Stringer("tenant_id", tenantID), zap.Error(err))
	}
	return err
}

func (c *Cache) hit(entity string) {
	if c.recorder != nil {
		c.recorder.CacheHit(entity)
	}
}

func (c *Cache) miss(entity string) {
	if c.recorder != nil {
		c.recorder.CacheMiss(entity)
	}
}

func roundTrip(value, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
