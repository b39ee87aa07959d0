package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory. go-cache hides expired items
// from Get even before the janitor removes them.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore returns a MemoryStore whose janitor runs every cleanup
// interval; cleanup <= 0 disables the janitor.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, cleanup)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	if !ok {
		s.items.Delete(key)
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.items.Set(key, buf, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for k := range s.items.Items() {
		if strings.HasPrefix(k, prefix) {
			s.items.Delete(k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Flush(context.Context) error {
	s.items.Flush()
	return nil
}

func (s *MemoryStore) Close() error {
	s.items.Flush()
	return nil
}
