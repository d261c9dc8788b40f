package search

import (
	"math"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

// ResultCache keeps recent responses keyed by normalized query and evicts
// the least recently used one when full.
type ResultCache struct {
	mu          sync.Mutex
	entries     map[string]*cacheEntry
	maxEntries  int
	accessCount int64
	generation  uint64
	hits        int64
	misses      int64
}

type cacheEntry struct {
	resp       Response
	accessTime int64
}

// NewResultCache returns a cache holding up to maxEntries responses.
// A non-positive size disables caching.
func NewResultCache(maxEntries int) *ResultCache {
	return &ResultCache{
		entries:    make(map[string]*cacheEntry, max(maxEntries, 0)),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the cached response for key.
func (c *ResultCache) Get(key string) (Response, bool) {
	if c.maxEntries <= 0 {
		return Response{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return Response{}, false
	}
	c.hits++
	e.accessTime = c.nextAccessTime()
	resp := e.resp
	resp.Results = slices.Clone(e.resp.Results)
	return resp, true
}

// Generation identifies the current cache contents. It changes on every
// Invalidate.
func (c *ResultCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Put stores resp under key. gen is the Generation read before resp was
// computed; the write is dropped when the cache was invalidated since.
func (c *ResultCache) Put(key string, resp Response, gen uint64) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	resp.Results = slices.Clone(resp.Results)
	c.entries[key] = &cacheEntry{resp: resp, accessTime: c.nextAccessTime()}
}

// Invalidate drops every entry.
func (c *ResultCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > 0 {
		log.Debug("result cache invalidated", "entries", len(c.entries))
	}
	c.entries = make(map[string]*cacheEntry, max(c.maxEntries, 0))
	c.generation++
}

// Stats returns cache counters.
func (c *ResultCache) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{
		"cacheEntries": len(c.entries),
		"maxEntries":   c.maxEntries,
		"cacheHits":    int(c.hits),
		"cacheMisses":  int(c.misses),
	}
}

func (c *ResultCache) nextAccessTime() int64 {
	c.accessCount++
	return c.accessCount
}

// evictLRU must be called with c.mu held.
func (c *ResultCache) evictLRU() {
	var oldestKey string
	var oldestTime int64 = math.MaxInt64

	for key, e := range c.entries {
		if e.accessTime < oldestTime {
			oldestTime = e.accessTime
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
