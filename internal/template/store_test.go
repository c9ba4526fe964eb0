package template

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoreLearnSeedsSuccessRate(t *testing.T) {
	store := NewStore(&MemoryBackend{})

	store.Learn("good.com", SelectorSet{UnitContainer: ".unit"}, true)
	store.Learn("bad.com", SelectorSet{}, false)

	rec, ok := store.Get("good.com")
	assert.True(t, ok)
	assert.Equal(t, 1.0, rec.SuccessRate)
	assert.Equal(t, 1, rec.UsageCount)

	rec, ok = store.Get("bad.com")
	assert.True(t, ok)
	assert.Equal(t, 0.0, rec.SuccessRate)
}

// TestStoreRollingSuccessRate verifies the half-weight rolling update:
// rate = (rate + outcome) / 2
func TestStoreRollingSuccessRate(t *testing.T) {
	store := NewStore(&MemoryBackend{})
	store.Learn("example.com", SelectorSet{UnitContainer: ".unit"}, true)

	store.RecordOutcome("example.com", true)
	rec, _ := store.Get("example.com")
	assert.Equal(t, 1.0, rec.SuccessRate)

	store.RecordOutcome("example.com", false)
	rec, _ = store.Get("example.com")
	assert.Equal(t, 0.5, rec.SuccessRate)

	store.RecordOutcome("example.com", false)
	rec, _ = store.Get("example.com")
	assert.Equal(t, 0.25, rec.SuccessRate)

	// rate stays in [0, 1] no matter the sequence
	for i := 0; i < 20; i++ {
		store.RecordOutcome("example.com", i%3 == 0)
		rec, _ = store.Get("example.com")
		assert.GreaterOrEqual(t, rec.SuccessRate, 0.0)
		assert.LessOrEqual(t, rec.SuccessRate, 1.0)
	}
}

func TestStoreRecordOutcomeWithoutRecord(t *testing.T) {
	stats := &MemoryBackend{}
	store := NewStore(&MemoryBackend{}, WithStatsBackend(stats))

	// no learned record: the rate update is a no-op but stats still move
	store.RecordOutcome("unknown.com", false)
	_, ok := store.Get("unknown.com")
	assert.False(t, ok)

	var usage map[string]DomainStats
	assert.NoError(t, stats.Load(&usage))
	assert.Equal(t, 1, usage["unknown.com"].Attempts)
	assert.Equal(t, 0, usage["unknown.com"].Successes)
}

// TestStoreRelearnMergesSelectors verifies that re-learning a known domain
// updates in place instead of duplicating the record
func TestStoreRelearnMergesSelectors(t *testing.T) {
	store := NewStore(&MemoryBackend{})

	store.Learn("example.com", SelectorSet{UnitContainer: ".unit", Price: ".rent"}, true)
	store.Learn("example.com", SelectorSet{CookieDismiss: "#accept"}, false)

	assert.Equal(t, 1, store.Len())

	rec, ok := store.Get("example.com")
	assert.True(t, ok)
	assert.Equal(t, "#accept", rec.Selectors.CookieDismiss)
	assert.Equal(t, ".unit", rec.Selectors.UnitContainer)
	assert.Equal(t, ".rent", rec.Selectors.Price)
	// the re-learn must not reset the seed
	assert.Equal(t, 1.0, rec.SuccessRate)
	assert.Equal(t, 2, rec.UsageCount)
}

func TestStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json at all"), 0644))

	store := NewStore(FileBackend{Path: path})
	assert.Equal(t, 0, store.Len())

	// the store is usable and persists over the corrupt file
	store.Learn("example.com", SelectorSet{UnitContainer: ".unit"}, true)

	reloaded := NewStore(FileBackend{Path: path})
	rec, ok := reloaded.Get("example.com")
	assert.True(t, ok)
	assert.Equal(t, ".unit", rec.Selectors.UnitContainer)
}

func TestStoreFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")

	store := NewStore(FileBackend{Path: path})
	store.Learn("a.com", SelectorSet{UnitContainer: ".unit"}, true)
	store.RecordOutcome("a.com", false)

	reloaded := NewStore(FileBackend{Path: path})
	rec, ok := reloaded.Get("a.com")
	assert.True(t, ok)
	assert.Equal(t, 0.5, rec.SuccessRate)
}

func TestStorePrune(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(&MemoryBackend{}, WithClock(func() time.Time { return now }))

	store.Learn("stale.com", SelectorSet{UnitContainer: ".unit"}, true)

	now = now.Add(100 * 24 * time.Hour)
	store.Learn("fresh.com", SelectorSet{UnitContainer: ".unit"}, true)

	removed := store.Prune(90 * 24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := store.Get("stale.com")
	assert.False(t, ok)
	_, ok = store.Get("fresh.com")
	assert.True(t, ok)
}
