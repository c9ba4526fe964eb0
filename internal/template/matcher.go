package template

import "mpatch/unitscout/logger"

// Resolved is the matcher's answer: the template to drive extraction with and
// the resolution kind (one_off, learned, a catalog template name, or unknown).
type Resolved struct {
	Template Template
	Kind     string
}

// Matcher resolves a URL to a template. Resolution is a pure lookup in strict
// priority order: one-off override, learned store, static catalog, unknown.
// Given the same domain and store contents, two resolutions always agree.
type Matcher struct {
	oneOffs map[string]Template
	store   *Store
	catalog *Catalog
	log     *logger.Logger
}

// NewMatcher builds a matcher. oneOffs is keyed by exact normalized domain
// and may be nil.
func NewMatcher(oneOffs map[string]Template, store *Store, catalog *Catalog) *Matcher {
	if oneOffs == nil {
		oneOffs = make(map[string]Template)
	}
	return &Matcher{
		oneOffs: oneOffs,
		store:   store,
		catalog: catalog,
		log:     logger.ForMatcher(),
	}
}

// Resolve returns the template for a URL, consulting an optional content
// snapshot for catalog keyword matching. A nil result with kind "unknown" is
// not an error; the caller branches into discovery.
func (m *Matcher) Resolve(rawURL, content string) (*Resolved, string) {
	domain := NormalizeDomain(rawURL)

	if t, ok := m.oneOffs[domain]; ok {
		m.log.Debug().Str("domain", domain).Msg("Resolved via one-off override")
		return &Resolved{Template: t, Kind: KindOneOff}, KindOneOff
	}

	if m.store != nil {
		if rec, ok := m.store.Get(domain); ok {
			t := Template{
				Name:      "learned:" + domain,
				Selectors: rec.Selectors,
			}
			m.log.Debug().
				Str("domain", domain).
				Float64("success_rate", rec.SuccessRate).
				Msg("Resolved via learned store")
			return &Resolved{Template: t, Kind: KindLearned}, KindLearned
		}
	}

	if m.catalog != nil {
		if t, ok := m.catalog.Match(domain, content); ok {
			m.log.Debug().Str("domain", domain).Str("template", t.Name).Msg("Resolved via catalog")
			return &Resolved{Template: t, Kind: t.Name}, t.Name
		}
	}

	m.log.Debug().Str("domain", domain).Msg("No template matched")
	return nil, KindUnknown
}
