package template

import "time"

// Catalog is an ordered registry of static templates. Registration order is
// the match order, so put the most specific families first.
type Catalog struct {
	templates []Template
}

// NewCatalog returns a catalog preloaded with the known property-management
// platform families.
func NewCatalog() *Catalog {
	c := &Catalog{}
	for _, t := range defaultTemplates() {
		c.Register(t)
	}
	return c
}

// NewEmptyCatalog returns a catalog with no templates registered.
func NewEmptyCatalog() *Catalog {
	return &Catalog{}
}

// Register appends a template to the catalog.
func (c *Catalog) Register(t Template) {
	c.templates = append(c.templates, t)
}

// Match returns the first template whose domain hints match the normalized
// domain or whose content keywords match the snapshot.
func (c *Catalog) Match(domain, content string) (Template, bool) {
	for _, t := range c.templates {
		if t.MatchesDomain(domain) || t.MatchesContent(content) {
			return t, true
		}
	}
	return Template{}, false
}

// Templates returns the registered templates in registration order.
func (c *Catalog) Templates() []Template {
	return c.templates
}

func defaultTemplates() []Template {
	return []Template{
		{
			Name:            "rentcafe",
			DomainHints:     []string{"rentcafe.com", "securecafe.com"},
			ContentKeywords: []string{"rentcafe", "securecafe"},
			Selectors: SelectorSet{
				CookieDismiss: "#cookie-accept, button.cookie-btn-accept",
				FloorplanNav:  "a[href*='floorplans']",
				UnitContainer: ".fp-container, .floorplan-tile",
				UnitName:      ".fp-name, h3.floorplan-title",
				Price:         ".fp-rent, .rent-price",
				BedBath:       ".fp-bed-bath, .bed-bath",
				SquareFeet:    ".fp-sqft, .sq-ft",
			},
			Behavior: Behavior{WaitNetworkIdle: true, Timeout: 45 * time.Second},
		},
		{
			Name:            "entrata",
			DomainHints:     []string{"entrata.com", "prospectportal.com"},
			ContentKeywords: []string{"entrata", "prospectportal"},
			Selectors: SelectorSet{
				CookieDismiss: "button[id*='cookie'], .cookie-consent button",
				FloorplanNav:  "a[href*='floorplans'], a[href*='availability']",
				UnitContainer: ".floorplan-listing, .fp-group",
				UnitName:      ".floorplan-name",
				Price:         ".floorplan-rent, .pricing",
				BedBath:       ".floorplan-bedbath",
				SquareFeet:    ".floorplan-sqft",
			},
			Behavior: Behavior{ScrollBeforeClick: true, Timeout: 40 * time.Second},
		},
		{
			Name:            "realpage",
			DomainHints:     []string{"realpage.com", "g5static.com", "onlineleasing"},
			ContentKeywords: []string{"realpage", "g5 marketing"},
			Selectors: SelectorSet{
				FloorplanNav:  "a[href*='floorplans'], a[href*='floor-plans']",
				UnitContainer: ".floorplan-card, .fp-card",
				UnitName:      ".floorplan-card-title",
				Price:         ".floorplan-card-rent",
				BedBath:       ".floorplan-card-details",
				SquareFeet:    ".floorplan-card-details",
			},
			Behavior: Behavior{Timeout: 30 * time.Second},
		},
		{
			Name:            "appfolio",
			DomainHints:     []string{"appfolio.com", "appfoliowebsites.com"},
			ContentKeywords: []string{"appfolio"},
			Selectors: SelectorSet{
				UnitContainer: ".listing-item",
				UnitName:      ".listing-item__title",
				Price:         ".listing-item__price, .detail-box__value",
				BedBath:       ".listing-item__details",
				SquareFeet:    ".listing-item__details",
			},
			Behavior: Behavior{Timeout: 30 * time.Second},
		},
		{
			Name:            "buildium",
			DomainHints:     []string{"managebuilding.com"},
			ContentKeywords: []string{"buildium"},
			Selectors: SelectorSet{
				UnitContainer: ".featured-listing, .listing-card",
				UnitName:      ".listing-title",
				Price:         ".listing-rent",
				BedBath:       ".listing-beds-baths",
				SquareFeet:    ".listing-sqft",
			},
			Behavior: Behavior{Timeout: 30 * time.Second},
		},
	}
}
