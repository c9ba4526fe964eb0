package extract

import "time"

// UnitRecord is one extracted floorplan/apartment listing. It lives only for
// the duration of the run; persisting it is the caller's business.
type UnitRecord struct {
	UnitName     string   `json:"unit_name,omitempty"`
	Price        string   `json:"price,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	SquareFeet   *int     `json:"square_feet,omitempty"`
	Availability string   `json:"availability,omitempty"`
	RawText      string   `json:"raw_text,omitempty"`
}

// Result is the metadata envelope around one extraction run. Downstream
// consumers (database push, CLI report) read this; the engine does not care
// where it goes.
type Result struct {
	URL             string        `json:"url"`
	Domain          string        `json:"domain"`
	TemplateName    string        `json:"template_name"`
	TemplateKind    string        `json:"template_kind"`
	Units           []UnitRecord  `json:"units"`
	UnitCount       int           `json:"unit_count"`
	Duration        time.Duration `json:"duration_ns"`
	Success         bool          `json:"success"`
	FailureCategory string        `json:"failure_category,omitempty"`
}
