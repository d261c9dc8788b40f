// Package widget models the search box: its text, whether the shortcut panel
// is expanded, and the current result list.
package widget

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nepalcovid19/searchserve/pkg/search"
)

// Searcher runs a query. *search.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) search.Response
}

// State is a snapshot of the widget.
type State struct {
	Value          string
	Expanded       bool
	Results        []search.Result
	CorrectedQuery string
}

// ShowClose reports whether the clear button is visible.
func (s State) ShowClose() bool {
	return len(s.Results) > 0
}

// Widget is safe for concurrent use; each transition is atomic.
type Widget struct {
	searcher Searcher
	mu       sync.Mutex
	state    State
	seq      uint64
}

// New returns an empty, collapsed widget.
func New(searcher Searcher) *Widget {
	return &Widget{searcher: searcher}
}

// State returns a copy of the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state
	st.Results = slices.Clone(w.state.Results)
	return st
}

// Focus expands the shortcut panel.
func (w *Widget) Focus() {
	w.mu.Lock()
	w.state.Expanded = true
	w.mu.Unlock()
}

// Blur collapses the shortcut panel. Results stay.
func (w *Widget) Blur() {
	w.mu.Lock()
	w.state.Expanded = false
	w.mu.Unlock()
}

// Change sets the input text and re-runs the search on its lower-cased form.
// When calls overlap, only the most recent one's results are kept.
func (w *Widget) Change(ctx context.Context, text string) {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.state.Value = text
	w.mu.Unlock()

	resp := w.searcher.Search(ctx, strings.ToLower(text))

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.seq {
		return
	}
	w.state.Results = resp.Results
	w.state.CorrectedQuery = resp.CorrectedQuery
}

// Clear empties the input and the results.
func (w *Widget) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.state.Value = ""
	w.state.Results = nil
	w.state.CorrectedQuery = ""
}

// Pick fills the input with a quick suggestion and searches for it.
// The panel stays expanded, as picking does not blur the input.
func (w *Widget) Pick(ctx context.Context, label string) error {
	if !IsQuickSuggestion(label) {
		return fmt.Errorf("unknown quick suggestion %q", label)
	}
	w.Change(ctx, label)
	return nil
}
