package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMatcherPriority verifies the strict resolution order:
// one-off override, learned store, catalog, unknown
func TestMatcherPriority(t *testing.T) {
	store := NewStore(&MemoryBackend{})
	store.Learn("rentcafe.com", SelectorSet{UnitContainer: ".learned-unit"}, true)

	oneOffs := map[string]Template{
		"rentcafe.com": {Name: "special-override", Selectors: SelectorSet{UnitContainer: ".override"}},
	}

	matcher := NewMatcher(oneOffs, store, NewCatalog())

	// one-off wins over both learned and catalog
	resolved, kind := matcher.Resolve("https://www.rentcafe.com/apartments", "")
	assert.NotNil(t, resolved)
	assert.Equal(t, KindOneOff, kind)
	assert.Equal(t, "special-override", resolved.Template.Name)

	// without the one-off the learned record wins over the catalog
	matcher = NewMatcher(nil, store, NewCatalog())
	resolved, kind = matcher.Resolve("https://www.rentcafe.com/apartments", "")
	assert.NotNil(t, resolved)
	assert.Equal(t, KindLearned, kind)
	assert.Equal(t, ".learned-unit", resolved.Template.Selectors.UnitContainer)

	// with an empty store the catalog answers
	matcher = NewMatcher(nil, NewStore(&MemoryBackend{}), NewCatalog())
	resolved, kind = matcher.Resolve("https://www.rentcafe.com/apartments", "")
	assert.NotNil(t, resolved)
	assert.Equal(t, "rentcafe", kind)

	// nothing knows the domain
	resolved, kind = matcher.Resolve("https://tiny-landlord.example", "")
	assert.Nil(t, resolved)
	assert.Equal(t, KindUnknown, kind)
}

// TestMatcherDeterministic verifies that resolution is a pure lookup: the
// same URL resolves identically on every call
func TestMatcherDeterministic(t *testing.T) {
	store := NewStore(&MemoryBackend{})
	store.Learn("example.com", SelectorSet{UnitContainer: ".unit"}, true)
	matcher := NewMatcher(nil, store, NewCatalog())

	first, firstKind := matcher.Resolve("https://WWW.Example.com/x", "")
	for i := 0; i < 10; i++ {
		again, kind := matcher.Resolve("https://WWW.Example.com/x", "")
		assert.Equal(t, firstKind, kind)
		assert.Equal(t, first.Template.Name, again.Template.Name)
	}
}

func TestMatcherNormalizesBeforeLookup(t *testing.T) {
	store := NewStore(&MemoryBackend{})
	store.Learn("example.com", SelectorSet{UnitContainer: ".unit"}, true)
	matcher := NewMatcher(nil, store, NewEmptyCatalog())

	// scheme, www and path variants all hit the same record
	for _, url := range []string{
		"https://WWW.Example.com/x",
		"http://example.com/floorplans?page=2",
		"example.com",
	} {
		resolved, kind := matcher.Resolve(url, "")
		assert.NotNil(t, resolved, url)
		assert.Equal(t, KindLearned, kind, url)
	}
}

func TestMatcherContentKeywordFallback(t *testing.T) {
	matcher := NewMatcher(nil, NewStore(&MemoryBackend{}), NewCatalog())

	// the domain gives nothing away; the page content names the platform
	resolved, kind := matcher.Resolve("https://greenwood-flats.com", "Leasing powered by RentCafe")
	assert.NotNil(t, resolved)
	assert.Equal(t, "rentcafe", kind)
}
