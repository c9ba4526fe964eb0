package cache

import (
	"time"
)

// CacheService is the shared cache behind the failure breaker's counters and
// cooldown flags. Expiration does the bookkeeping: a cooldown that lapses is
// simply a key that no longer exists.
type CacheService interface {
	// Get retrieves a value from the cache. A missing key is an error.
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time.
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache.
	Delete(key string) error
}
