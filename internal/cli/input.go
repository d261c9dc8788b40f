// Package cli reads queries from a terminal and prints the merged suggestions.
// Useful for checking datasets and the essentials feed without a browser.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nepalcovid19/searchserve/internal/utils"
	"github.com/nepalcovid19/searchserve/pkg/search"
)

// Searcher is the engine as seen by the CLI.
type Searcher interface {
	Search(ctx context.Context, query string) search.Response
}

var (
	nameStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	kindStyle = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#797593", Dark: "#908caa"})
	linkStyle = lipgloss.NewStyle().Faint(true)
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#b4637a", Dark: "#eb6f92"})
)

// InputHandler processes user input line by line. Length limits and the
// input filter match the transports.
type InputHandler struct {
	engine      Searcher
	in          io.Reader
	out         io.Writer
	minLength   int
	maxLength   int
	noFilter    bool
	showTimings bool
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(engine Searcher, in io.Reader, out io.Writer, minLength, maxLength int, noFilter, showTimings bool) *InputHandler {
	return &InputHandler{
		engine:      engine,
		in:          in,
		out:         out,
		minLength:   minLength,
		maxLength:   maxLength,
		noFilter:    noFilter,
		showTimings: showTimings,
	}
}

// Start prompts for queries until the input ends or ctx is cancelled.
// EOF is a normal exit.
func (h *InputHandler) Start(ctx context.Context) error {
	fmt.Fprintln(h.out, "searchserve CLI")
	fmt.Fprintln(h.out, "type a district, region or resource and press Enter (Ctrl+D to exit):")

	scanner := bufio.NewScanner(h.in)
	for {
		fmt.Fprint(h.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(h.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		h.handleInput(ctx, query)
	}
}

func (h *InputHandler) handleInput(ctx context.Context, query string) {
	if err := search.ValidateQuery(query, h.minLength, h.maxLength); err != nil {
		fmt.Fprintln(h.out, hintStyle.Render(err.Error()))
		return
	}

	if !h.noFilter && !utils.IsValidInput(query) {
		fmt.Fprintf(h.out, "No results for '%s'\n", query)
		return
	}

	start := time.Now()
	resp := h.engine.Search(ctx, query)
	elapsed := time.Since(start)
	log.Debug("cli search", "q", query, "count", len(resp.Results), "took", elapsed)

	if resp.WasCorrected {
		fmt.Fprintln(h.out, hintStyle.Render("showing results for "+resp.CorrectedQuery))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintf(h.out, "No results for '%s'\n", query)
		return
	}

	for i, r := range resp.Results {
		fmt.Fprintf(h.out, "%2d. %s  %s  %s\n", i+1,
			nameStyle.Render(r.Name),
			kindStyle.Render(describe(r)),
			linkStyle.Render(r.Href()))
		if r.Description != "" {
			fmt.Fprintf(h.out, "    %s\n", utils.Truncate(r.Description, 72))
		}
	}
	if h.showTimings {
		fmt.Fprintf(h.out, "%d results in %v", len(resp.Results), elapsed)
		if !resp.EssentialsReady {
			fmt.Fprint(h.out, " (essentials unavailable)")
		}
		fmt.Fprintln(h.out)
	}
}

func describe(r search.Result) string {
	if r.Type == search.KindState {
		return "Visit state page"
	}
	if r.City != "" || r.State != "" {
		return fmt.Sprintf("%s | %s, %s", r.CategoryLabel(), r.City, r.State)
	}
	return r.CategoryLabel()
}
