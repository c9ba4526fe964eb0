package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Field-level regex fallbacks, applied to a container's visible text when its
// explicit selector is missing or matches nothing.
var (
	priceRe      = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	bareAmountRe = regexp.MustCompile(`^[0-9][0-9,]*(?:\.[0-9]{1,2})?$`)
	bedroomRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:bedroom|bed|br)s?\b`)
	bathroomRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bathroom|bath|ba)s?\b`)
	squareFeetRe = regexp.MustCompile(`(?i)(\d{3,5})\s*sq(?:uare)?\.?\s*(?:ft|feet)`)
)

// NormalizePrice strips currency symbols, commas and whitespace, and renders
// the amount as a fixed two-decimal string. Bare digit strings are treated as
// whole dollars. Returns "" when no amount can be parsed.
func NormalizePrice(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	amount := ""
	if m := priceRe.FindStringSubmatch(raw); m != nil {
		amount = m[1]
	} else {
		stripped := strings.TrimSpace(strings.TrimPrefix(raw, "$"))
		if bareAmountRe.MatchString(stripped) {
			amount = stripped
		}
	}
	if amount == "" {
		return ""
	}

	amount = strings.ReplaceAll(amount, ",", "")
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// PriceFromText finds the first dollar amount in free text and normalizes it.
func PriceFromText(text string) string {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return NormalizePrice("$" + m[1])
}

// ParseBedrooms extracts a bedroom count from text like "2 bed 1 bath" or
// "3BR". "Studio" and unparseable text return nil rather than an error; a
// studio listing carries no bedroom count.
func ParseBedrooms(text string) *int {
	m := bedroomRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// ParseBathrooms extracts a bathroom count, supporting half baths ("1.5 bath").
func ParseBathrooms(text string) *float64 {
	m := bathroomRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseSquareFeet extracts square footage from text like "850 sq ft" or
// "1,050 sqft". Separators inside the number defeat the 3-5 digit window, so
// they are stripped before matching.
func ParseSquareFeet(text string) *int {
	m := squareFeetRe.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
