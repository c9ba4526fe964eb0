package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryServiceSetGetDelete(t *testing.T) {
	c := NewMemoryService()

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, c.Set("key", []byte("value"), 0))
	got, err := c.Get("key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	assert.NoError(t, c.Delete("key"))
	_, err = c.Get("key")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// deleting again is fine
	assert.NoError(t, c.Delete("key"))
}

func TestMemoryServiceExpiration(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryServiceWithClock(func() time.Time { return now })

	assert.NoError(t, c.Set("ttl", []byte("v"), time.Minute))
	assert.NoError(t, c.Set("forever", []byte("v"), 0))

	_, err := c.Get("ttl")
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)

	_, err = c.Get("ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// zero expiration never ages out
	_, err = c.Get("forever")
	assert.NoError(t, err)
}

func TestMemoryServiceOverwrite(t *testing.T) {
	c := NewMemoryService()

	assert.NoError(t, c.Set("key", []byte("old"), 0))
	assert.NoError(t, c.Set("key", []byte("new"), 0))

	got, err := c.Get("key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}
