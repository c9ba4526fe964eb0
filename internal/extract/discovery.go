package extract

import (
	"context"

	"mpatch/unitscout/internal/page"
	"mpatch/unitscout/internal/template"
	"mpatch/unitscout/logger"
)

// Discovery handles domains no template matches. It runs the extractor with
// an empty selector set, so every stage falls through to the generic probes,
// then persists whichever selectors actually got exercised.
type Discovery struct {
	store     *template.Store
	extractor *Extractor
	log       *logger.Logger
}

// NewDiscovery wires a discovery engine to the learned-template store.
func NewDiscovery(store *template.Store, extractor *Extractor) *Discovery {
	return &Discovery{
		store:     store,
		extractor: extractor,
		log:       logger.ForDiscovery(),
	}
}

// Discover probes an already-navigated page, learns the exercised selectors
// for its domain and returns the validation records. A discovery that finds
// nothing still writes a zero-seeded record, so the domain is remembered as
// attempted rather than re-probed from scratch forever.
func (d *Discovery) Discover(ctx context.Context, p page.Page) (template.SelectorSet, []UnitRecord) {
	domain := template.NormalizeDomain(p.URL())

	out := d.extractor.Extract(ctx, p, template.Template{})

	selectors := template.SelectorSet{
		CookieDismiss: out.CookieSelector,
		FloorplanNav:  out.NavSelector,
		UnitContainer: out.ContainerSelector,
	}

	yielded := len(out.Units) > 0
	d.store.Learn(domain, selectors, yielded)

	d.log.Info().
		Str("domain", domain).
		Int("units", len(out.Units)).
		Bool("yielded", yielded).
		Str("container", out.ContainerSelector).
		Msg("Discovery pass complete")

	return selectors, out.Units
}
