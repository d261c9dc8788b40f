package search

import "strings"

// Kind selects how a result is rendered and where it navigates.
type Kind string

const (
	// KindState results link to an internal region page.
	KindState Kind = "state"
	// KindEssentials results link out to the organisation's website.
	KindEssentials Kind = "essentials"
)

// Result is one row of the merged suggestion list.
type Result struct {
	Name        string `json:"name" msgpack:"n"`
	Type        Kind   `json:"type" msgpack:"k"`
	Route       string `json:"route,omitempty" msgpack:"rt,omitempty"`
	Category    string `json:"category,omitempty" msgpack:"cat,omitempty"`
	Website     string `json:"website,omitempty" msgpack:"w,omitempty"`
	Description string `json:"description,omitempty" msgpack:"d,omitempty"`
	City        string `json:"city,omitempty" msgpack:"ci,omitempty"`
	State       string `json:"state,omitempty" msgpack:"st,omitempty"`
	Contact     string `json:"contact,omitempty" msgpack:"ph,omitempty"`
}

// IsExternal reports whether the result opens an external link.
func (r Result) IsExternal() bool {
	return r.Type != KindState
}

// Href is the navigation target: state/<code> for regions and districts,
// the organisation website otherwise.
func (r Result) Href() string {
	if r.Type == KindState {
		return "state/" + r.Route
	}
	return r.Website
}

// CategoryLabel is the category as displayed. Anything mentioning
// "Delivery" is shown as "Home Delivery".
func (r Result) CategoryLabel() string {
	if strings.Contains(r.Category, "Delivery") {
		return "Home Delivery"
	}
	return r.Category
}

// Response is the outcome of one query.
type Response struct {
	Query          string   `json:"query" msgpack:"q"`
	Results        []Result `json:"results" msgpack:"r"`
	WasCorrected   bool     `json:"was_corrected,omitempty" msgpack:"wc,omitempty"`
	CorrectedQuery string   `json:"corrected_query,omitempty" msgpack:"cq,omitempty"`
	// EssentialsReady is false while the remote feed has never loaded.
	EssentialsReady bool `json:"essentials_ready" msgpack:"er"`
}
