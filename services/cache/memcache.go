package cache

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService is the CacheService for multi-worker deployments: breaker
// failure counters and cooldown flags written by one scraper instance are
// visible to every instance sharing the memcache.
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService connects to the memcache server at serverAddr.
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
	}
}

// Get retrieves a value. A missing or expired key surfaces as
// memcache.ErrCacheMiss, which callers treat the same as any other miss.
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value. Memcache takes whole seconds, so sub-second
// expirations round down and a zero duration never expires.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value.
func (m *MemcacheService) Delete(key string) error {
	return m.client.Delete(key)
}
