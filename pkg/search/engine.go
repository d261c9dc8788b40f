// Package search merges the region, district and essentials indexes into
// the single suggestion list shown under the search box.
package search

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/nepalcovid19/searchserve/internal/logger"
	"github.com/nepalcovid19/searchserve/pkg/datasets"
	"github.com/nepalcovid19/searchserve/pkg/essentials"
	"github.com/nepalcovid19/searchserve/pkg/index"
)

// Options caps the number of results per dataset. Zero means uncapped.
type Options struct {
	RegionLimit     int
	DistrictLimit   int
	EssentialsLimit int
	Fuzzy           bool
	CacheSize       int
}

// DefaultOptions leaves regions uncapped and caps the other datasets at 5.
func DefaultOptions() Options {
	return Options{
		RegionLimit:     0,
		DistrictLimit:   5,
		EssentialsLimit: 5,
		Fuzzy:           true,
		CacheSize:       512,
	}
}

// EssentialsSource is the remote feed as seen by the engine. Load is called
// on every query and must return quickly once a fresh copy is cached.
type EssentialsSource interface {
	Load(ctx context.Context) error
	Loaded() bool
	Records() []essentials.Record
	OnReload(fn func([]essentials.Record))
}

// Engine answers queries against the three indexes. It is safe for concurrent use.
type Engine struct {
	opts       Options
	dataset    *datasets.Dataset
	regions    *index.Index[datasets.Region]
	districts  *index.Index[datasets.District]
	essentials *index.Index[essentials.Record]
	source     EssentialsSource
	cache      *ResultCache
	corrector  atomic.Pointer[index.Corrector]
	queries    atomic.Int64
	log        *log.Logger
}

// NewEngine indexes ds and subscribes to reloads of source. source may be nil,
// in which case only regions and districts are searched.
func NewEngine(ds *datasets.Dataset, source EssentialsSource, opts Options) *Engine {
	e := &Engine{
		opts:    opts,
		dataset: ds,
		regions: index.NewFrom(ds.Regions, func(r datasets.Region) string {
			return r.Name
		}),
		districts: index.NewFrom(ds.Districts, func(d datasets.District) string {
			return d.District
		}),
		essentials: index.New(essentials.SearchFields()...),
		source:     source,
		cache:      NewResultCache(opts.CacheSize),
		log:        logger.New("search"),
	}

	if source != nil {
		if source.Loaded() {
			e.essentials.Reset(source.Records())
		}
		source.OnReload(e.reloadEssentials)
	}
	e.rebuildCorrector()
	return e
}

func (e *Engine) reloadEssentials(records []essentials.Record) {
	e.essentials.Reset(records)
	e.rebuildCorrector()
	e.cache.Invalidate()
	e.log.Debug("essentials index rebuilt", "records", len(records))
}

func (e *Engine) rebuildCorrector() {
	e.corrector.Store(index.NewCorrector(
		e.regions.Vocabulary(),
		e.districts.Vocabulary(),
		e.essentials.Vocabulary(),
	))
}

// Search returns the merged suggestions for query: all region matches, then
// up to DistrictLimit districts, then up to EssentialsLimit essentials.
// A remote feed that is slow or down only removes the essentials part.
func (e *Engine) Search(ctx context.Context, query string) Response {
	e.queries.Add(1)
	key := strings.Join(index.Tokenize(query), " ")
	if key == "" {
		return Response{Query: query, Results: []Result{}, EssentialsReady: e.essentialsReady()}
	}

	if e.source != nil {
		if err := e.source.Load(ctx); err != nil {
			e.log.Debug("essentials unavailable for query", "query", key, "err", err)
		}
	}
	ready := e.essentialsReady()

	if resp, ok := e.cache.Get(key); ok {
		resp.Query = query
		return resp
	}

	gen := e.cache.Generation()
	resp := Response{Query: query, Results: e.collect(key), EssentialsReady: ready}
	if len(resp.Results) == 0 && e.opts.Fuzzy {
		if corr, ok := e.corrector.Load().Correct(key, e.known); ok {
			if results := e.collect(corr.Corrected); len(results) > 0 {
				resp.Results = results
				resp.WasCorrected = true
				resp.CorrectedQuery = corr.Corrected
			}
		}
	}

	if ready {
		e.cache.Put(key, resp, gen)
	}
	return resp
}

func (e *Engine) essentialsReady() bool {
	return e.source != nil && e.source.Loaded()
}

// known reports whether any index holds a token starting with tok.
func (e *Engine) known(tok string) bool {
	return e.regions.HasPrefix(tok) || e.districts.HasPrefix(tok) || e.essentials.HasPrefix(tok)
}

func (e *Engine) collect(q string) []Result {
	results := make([]Result, 0)

	for _, r := range e.regions.Search(q, e.opts.RegionLimit) {
		results = append(results, Result{
			Name:  r.Name,
			Type:  KindState,
			Route: r.Code,
		})
	}

	for _, d := range e.districts.Search(q, e.opts.DistrictLimit) {
		code, ok := e.dataset.CodeFor(d.State)
		if !ok {
			e.log.Warn("district has no region code", "district", d.District, "state", d.State)
		}
		results = append(results, Result{
			Name:  d.District + ", " + d.State,
			Type:  KindState,
			Route: code,
		})
	}

	for _, r := range e.essentials.Search(q, e.opts.EssentialsLimit) {
		results = append(results, Result{
			Name:        r.Organisation.String(),
			Type:        KindEssentials,
			Category:    r.Category.String(),
			Website:     r.Contact.String(),
			Description: r.Description.String(),
			City:        r.City.String(),
			State:       r.State.String(),
			Contact:     r.Phone.String(),
		})
	}
	return results
}

// Stats returns dataset sizes and cache counters.
func (e *Engine) Stats() map[string]int {
	stats := map[string]int{
		"regions":    e.regions.Len(),
		"districts":  e.districts.Len(),
		"essentials": e.essentials.Len(),
		"queries":    int(e.queries.Load()),
	}
	if e.essentialsReady() {
		stats["essentialsLoaded"] = 1
	} else {
		stats["essentialsLoaded"] = 0
	}
	for k, v := range e.cache.Stats() {
		stats[k] = v
	}
	return stats
}
