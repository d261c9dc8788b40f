// Package essentials fetches and caches the crowd-sourced resources feed.
//
// The feed is loaded lazily on first use and kept in memory afterwards.
// Failures never reach end users: the previous copy (possibly empty) stays
// in place and the error is logged.
package essentials

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nepalcovid19/searchserve/internal/logger"
)

var (
	// ErrNoResources means the payload had no top-level resources array.
	ErrNoResources = errors.New("payload has no resources array")
	// ErrNotLoaded means no copy of the feed is available yet.
	ErrNotLoaded = errors.New("essentials not loaded")
	// ErrCoolingDown means a recent fetch failed and the retry window has not passed.
	ErrCoolingDown = errors.New("essentials fetch cooling down after failure")
	// ErrStopped means Stop was called; no further fetches are started.
	ErrStopped = errors.New("essentials source stopped")
)

// Options configures a Source.
type Options struct {
	URL             string
	Timeout         time.Duration
	RetryCount      int
	RefreshInterval time.Duration
	// RetryAfter is how long Load waits after a failed fetch before trying again.
	RetryAfter   time.Duration
	SnapshotPath string
}

// Stats describes the cached copy.
type Stats struct {
	Records   int
	Loaded    bool
	Stale     bool
	FetchedAt time.Time
	Fetches   int
	Failures  int
}

// Source is the cached remote feed. It is safe for concurrent use.
type Source struct {
	opts  Options
	http  *resty.Client
	log   *log.Logger
	group singleflight.Group

	mu        sync.RWMutex
	records   []Record
	loaded    bool
	stale     bool
	stopped   bool
	fetchedAt time.Time
	failedAt  time.Time
	fetches   int
	failures  int
	listeners []func([]Record)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSource creates a Source. Nothing is fetched until Load or Refresh.
func NewSource(opts Options) *Source {
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 30 * time.Second
	}

	client := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "searchserve").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return err != nil
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		opts:   opts,
		http:   client,
		log:    logger.New("essentials"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnReload registers fn to be called with every newly loaded copy.
func (s *Source) OnReload(fn func([]Record)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Records returns the cached copy. Callers must not mutate it.
func (s *Source) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Loaded reports whether any copy is cached, from the network or a snapshot.
func (s *Source) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Stats returns counters about the cached copy.
func (s *Source) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Records:   len(s.records),
		Loaded:    s.loaded,
		Stale:     s.stale,
		FetchedAt: s.fetchedAt,
		Fetches:   s.fetches,
		Failures:  s.failures,
	}
}

// Load fetches the feed once. It returns immediately when a fetched copy is
// cached, and refuses to hit the network again within RetryAfter of a failure.
// A copy restored from a snapshot is stale: it is served, but Load still
// tries the network until one fetch succeeds.
func (s *Source) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded, stale, failedAt := s.loaded, s.stale, s.failedAt
	s.mu.RUnlock()

	if loaded && !stale {
		return nil
	}
	if !failedAt.IsZero() && time.Since(failedAt) < s.opts.RetryAfter {
		return ErrCoolingDown
	}
	return s.Refresh(ctx)
}

// Refresh forces a fetch. Concurrent callers share one request, which
// outlives a caller giving up but not Stop.
func (s *Source) Refresh(ctx context.Context) error {
	ch := s.group.DoChan("fetch", func() (any, error) {
		fetchCtx, done, err := s.track(ctx)
		if err != nil {
			return nil, err
		}
		defer done()
		return nil, s.refresh(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// track registers an in-flight fetch with the WaitGroup Stop waits on. The
// returned context is detached from ctx and cancelled by Stop.
func (s *Source) track(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, nil, ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	return fetchCtx, func() {
		stop()
		cancel()
		s.wg.Done()
	}, nil
}

func (s *Source) refresh(ctx context.Context) error {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := s.fetch(ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return ErrStopped
		}
		s.mu.Lock()
		s.failedAt = time.Now()
		s.failures++
		loaded := s.loaded
		s.mu.Unlock()

		s.log.Warn("fetch failed", "url", s.opts.URL, "err", err)
		if !loaded && s.opts.SnapshotPath != "" {
			if snapErr := s.RestoreSnapshot(); snapErr == nil {
				s.log.Info("serving essentials from snapshot", "path", s.opts.SnapshotPath)
			}
		}
		return err
	}

	s.store(records, time.Now(), false)
	s.log.Debug("fetched essentials", "records", len(records), "took", time.Since(start))

	if s.opts.SnapshotPath != "" {
		if err := s.SaveSnapshot(); err != nil {
			s.log.Warn("could not write snapshot", "path", s.opts.SnapshotPath, "err", err)
		}
	}
	return nil
}

func (s *Source) fetch(ctx context.Context) ([]Record, error) {
	if s.opts.URL == "" {
		return nil, fmt.Errorf("essentials url is not configured")
	}

	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()

	resp, err := s.http.R().SetContext(ctx).Get(s.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.opts.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: unexpected status %s", s.opts.URL, resp.Status())
	}

	records, skipped, err := decodePayload(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.opts.URL, err)
	}
	if skipped > 0 {
		s.log.Debug("skipped malformed resources", "count", skipped)
	}
	return records, nil
}

// store swaps in a new copy and notifies listeners outside the lock.
func (s *Source) store(records []Record, at time.Time, stale bool) {
	s.mu.Lock()
	s.records = records
	s.loaded = true
	s.stale = stale
	s.fetchedAt = at
	if !stale {
		s.failedAt = time.Time{}
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(records)
	}
}

// Start launches the background refresh loop when a refresh interval is set.
func (s *Source) Start() {
	if s.opts.RefreshInterval <= 0 {
		return
	}
	s.wg.Add(1)
	go s.refreshLoop()
}

func (s *Source) refreshLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Refresh(s.ctx); err != nil {
				s.log.Debug("background refresh failed", "err", err)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// Stop ends the background refresh loop, aborts any fetch in flight and
// waits for both to exit. No listener is called after Stop returns.
func (s *Source) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
