package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"mpatch/unitscout/internal/page"
	"mpatch/unitscout/internal/template"
)

func TestDiscoverLearnsWorkingSelectors(t *testing.T) {
	store := template.NewStore(&template.MemoryBackend{})
	d := NewDiscovery(store, NewExtractor())

	html := `<html><body>
		<div class="unit-card">The Cedar - 1 bed 1 bath $1,250 650 sq ft</div>
		<div class="unit-card">The Pine - 2 bed 2 bath $1,600 900 sq ft</div>
	</body></html>`
	p, err := page.NewStaticPageFromHTML("https://www.new-property.com/apartments", html)
	assert.NoError(t, err)

	selectors, units := d.Discover(context.Background(), p)
	assert.Len(t, units, 2)
	assert.Equal(t, ".unit-card", selectors.UnitContainer)

	// the domain is remembered under its normalized form, seeded successful
	rec, ok := store.Get("new-property.com")
	assert.True(t, ok)
	assert.Equal(t, 1.0, rec.SuccessRate)
	assert.Equal(t, ".unit-card", rec.Selectors.UnitContainer)
}

// TestDiscoverFailureStillWritesRecord verifies a fruitless discovery leaves
// a zero-seeded record so the domain is not endlessly re-probed
func TestDiscoverFailureStillWritesRecord(t *testing.T) {
	store := template.NewStore(&template.MemoryBackend{})
	d := NewDiscovery(store, NewExtractor())

	p, err := page.NewStaticPageFromHTML("https://www.dead-end.com", "<html><body><p>Hi</p></body></html>")
	assert.NoError(t, err)

	_, units := d.Discover(context.Background(), p)
	assert.Empty(t, units)

	rec, ok := store.Get("dead-end.com")
	assert.True(t, ok)
	assert.Equal(t, 0.0, rec.SuccessRate)
	assert.True(t, rec.Selectors.IsZero())
}

// TestDiscoverRepeatIsIdempotent runs discovery twice against the same
// domain and expects one merged record, not two
func TestDiscoverRepeatIsIdempotent(t *testing.T) {
	store := template.NewStore(&template.MemoryBackend{})
	d := NewDiscovery(store, NewExtractor())

	html := `<html><body><div class="unit">1 bed 1 bath $1,100</div></body></html>`
	p, err := page.NewStaticPageFromHTML("https://repeat.com", html)
	assert.NoError(t, err)

	d.Discover(context.Background(), p)
	d.Discover(context.Background(), p)

	assert.Equal(t, 1, store.Len())
	rec, _ := store.Get("repeat.com")
	assert.Equal(t, 2, rec.UsageCount)
}
