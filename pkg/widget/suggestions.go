package widget

// SuggestionGroup is a titled column of quick suggestions shown while the
// search box is focused.
type SuggestionGroup struct {
	Title  string   `json:"title" msgpack:"title"`
	Labels []string `json:"labels" msgpack:"labels"`
}

// QuickSuggestions returns the static shortcut groups. Labels are set as the
// input value verbatim, including the leading space on " District Level Hospital".
func QuickSuggestions() []SuggestionGroup {
	return []SuggestionGroup{
		{
			Title: "Essentials",
			Labels: []string{
				"Covid19-Testing Labs",
				"Quarantine Center",
				"Health Facility",
				"Medical College",
				" District Level Hospital",
			},
		},
		{
			Title: "Locations",
			Labels: []string{
				"Kathmandu",
				"Rautahat",
				"Chitwan",
				"Baglung",
				"Udayapur",
			},
		},
	}
}

// IsQuickSuggestion reports whether label is one of the shortcuts.
func IsQuickSuggestion(label string) bool {
	for _, g := range QuickSuggestions() {
		for _, l := range g.Labels {
			if l == label {
				return true
			}
		}
	}
	return false
}
