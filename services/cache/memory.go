package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss is returned by MemoryService.Get for an absent or expired key.
var ErrCacheMiss = errors.New("cache: key not found")

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryService is an in-process CacheService for single-instance deployments
// and tests. Expired entries are dropped lazily on read.
type MemoryService struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryService creates an empty in-memory cache.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// NewMemoryServiceWithClock overrides the time source, for tests.
func NewMemoryServiceWithClock(now func() time.Time) *MemoryService {
	return &MemoryService{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

// Get retrieves a value. Expired or missing keys return ErrCacheMiss.
func (m *MemoryService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		delete(m.items, key)
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value. A zero expiration keeps the key until deleted.
func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if expiration > 0 {
		item.expiresAt = m.now().Add(expiration)
	}
	m.items[key] = item
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (m *MemoryService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}
