package template

import (
	"net/url"
	"strings"
	"time"
)

// Resolution kinds returned by the matcher. Catalog matches use the
// template's own name as the kind.
const (
	KindOneOff  = "one_off"
	KindLearned = "learned"
	KindUnknown = "unknown"
)

// SelectorSet holds the navigation and field selectors for one family of
// property sites. Empty fields mean "not known"; the extractor falls back to
// its generic probe lists for anything missing.
type SelectorSet struct {
	CookieDismiss string `json:"cookie_dismiss,omitempty"`
	FloorplanNav  string `json:"floorplan_nav,omitempty"`
	UnitContainer string `json:"unit_container,omitempty"`
	UnitName      string `json:"unit_name,omitempty"`
	Price         string `json:"price,omitempty"`
	BedBath       string `json:"bed_bath,omitempty"`
	SquareFeet    string `json:"square_feet,omitempty"`
}

// Merge fills empty fields from other, keeping existing values. Used when a
// discovery pass re-learns a domain that already has a record.
func (s SelectorSet) Merge(other SelectorSet) SelectorSet {
	if s.CookieDismiss == "" {
		s.CookieDismiss = other.CookieDismiss
	}
	if s.FloorplanNav == "" {
		s.FloorplanNav = other.FloorplanNav
	}
	if s.UnitContainer == "" {
		s.UnitContainer = other.UnitContainer
	}
	if s.UnitName == "" {
		s.UnitName = other.UnitName
	}
	if s.Price == "" {
		s.Price = other.Price
	}
	if s.BedBath == "" {
		s.BedBath = other.BedBath
	}
	if s.SquareFeet == "" {
		s.SquareFeet = other.SquareFeet
	}
	return s
}

// IsZero reports whether no selector has been learned at all.
func (s SelectorSet) IsZero() bool {
	return s == SelectorSet{}
}

// Behavior carries per-template timing hints.
type Behavior struct {
	WaitNetworkIdle   bool          `json:"wait_network_idle,omitempty"`
	ScrollBeforeClick bool          `json:"scroll_before_click,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"`
}

// Template describes how to navigate and extract one family of websites.
type Template struct {
	Name            string
	DomainHints     []string
	ContentKeywords []string
	Selectors       SelectorSet
	Behavior        Behavior
}

// MatchesDomain reports whether any domain hint appears in the normalized
// domain.
func (t Template) MatchesDomain(domain string) bool {
	for _, hint := range t.DomainHints {
		if hint != "" && strings.Contains(domain, hint) {
			return true
		}
	}
	return false
}

// MatchesContent reports whether any content keyword appears in the page
// content snapshot, case-insensitive.
func (t Template) MatchesContent(content string) bool {
	if content == "" {
		return false
	}
	lower := strings.ToLower(content)
	for _, kw := range t.ContentKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// NormalizeDomain strips the scheme, a leading "www." and any path from a URL
// or bare host. The result is the store key for the domain, so the same input
// must always normalize the same way.
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	host := raw
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			host = u.Host
		} else {
			host = raw[strings.Index(raw, "://")+3:]
		}
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}
