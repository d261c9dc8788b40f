package essentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

const feed = `{"resources": [
	{"nameoftheorganisation": "Teku Hospital", "category": "Health Facility", "city": "Kathmandu", "state": "Bagmati"},
	{"nameoftheorganisation": "Bharatpur Quarantine", "category": "Quarantine Center", "city": "Chitwan", "state": "Bagmati"}
]}`

func feedServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoadFetchesOnce(t *testing.T) {
	srv, hits := feedServer(t, http.StatusOK, feed)
	src := NewSource(Options{URL: srv.URL, Timeout: time.Second})

	var reloads atomic.Int32
	src.OnReload(func(records []Record) {
		reloads.Add(1)
		assert.Len(t, records, 2)
	})

	require.NoError(t, src.Load(context.Background()))
	require.NoError(t, src.Load(context.Background()))

	assert.True(t, src.Loaded())
	assert.Len(t, src.Records(), 2)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), reloads.Load())

	stats := src.Stats()
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 1, stats.Fetches)
	assert.False(t, stats.FetchedAt.IsZero())
}

func TestConcurrentLoadsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)

	src := NewSource(Options{URL: srv.URL, Timeout: 5 * time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, src.Load(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, src.Records(), 2)
}

func TestLoadFailureDegradesAndCoolsDown(t *testing.T) {
	srv, hits := feedServer(t, http.StatusInternalServerError, `oops`)
	src := NewSource(Options{URL: srv.URL, Timeout: time.Second, RetryAfter: time.Hour})

	err := src.Load(context.Background())
	require.Error(t, err)
	assert.False(t, src.Loaded())
	assert.Empty(t, src.Records())

	err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrCoolingDown)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, src.Stats().Failures)
}

func TestRefreshKeepsPreviousCopyOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)

	src := NewSource(Options{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, src.Refresh(context.Background()))

	fail.Store(true)
	assert.Error(t, src.Refresh(context.Background()))
	assert.Len(t, src.Records(), 2)
	assert.True(t, src.Loaded())
}

func TestMissingResourcesArray(t *testing.T) {
	srv, _ := feedServer(t, http.StatusOK, `{"items": []}`)
	src := NewSource(Options{URL: srv.URL, Timeout: time.Second})

	err := src.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoResources)
	assert.False(t, src.Loaded())
}

func TestLoadHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	src := NewSource(Options{URL: srv.URL, Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := src.Load(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSnapshotRoundTripAndFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "essentials.msgpack")

	good, _ := feedServer(t, http.StatusOK, feed)
	src := NewSource(Options{URL: good.URL, Timeout: time.Second, SnapshotPath: path})
	require.NoError(t, src.Load(context.Background()))
	assert.FileExists(t, path)

	// same URL, but the feed is now down: the snapshot fills in
	down := NewSource(Options{URL: good.URL, Timeout: time.Second, SnapshotPath: path})
	good.Close()
	assert.Error(t, down.Load(context.Background()))
	assert.True(t, down.Loaded())
	require.Len(t, down.Records(), 2)
	assert.Equal(t, Text("Teku Hospital"), down.Records()[0].Organisation)
}

func TestRestoreSnapshotRejectsOtherFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essentials.msgpack")
	srv, _ := feedServer(t, http.StatusOK, feed)

	src := NewSource(Options{URL: srv.URL, Timeout: time.Second, SnapshotPath: path})
	require.NoError(t, src.Load(context.Background()))

	other := NewSource(Options{URL: "http://elsewhere.invalid/feed.json", SnapshotPath: path})
	assert.Error(t, other.RestoreSnapshot())
	assert.False(t, other.Loaded())

	assert.ErrorIs(t, NewSource(Options{SnapshotPath: path}).SaveSnapshot(), ErrNotLoaded)
}

func TestBackgroundRefresh(t *testing.T) {
	srv, hits := feedServer(t, http.StatusOK, feed)
	src := NewSource(Options{URL: srv.URL, Timeout: time.Second, RefreshInterval: 20 * time.Millisecond})

	src.Start()
	assert.Eventually(t, func() bool { return hits.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	src.Stop()
	time.Sleep(30 * time.Millisecond)

	settled := hits.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, hits.Load())
	assert.True(t, src.Loaded())
}

func TestRestoredSnapshotIsRefreshedOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essentials.msgpack")
	var fresh atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fresh.Load() {
			_, _ = w.Write([]byte(`{"resources": [{"nameoftheorganisation": "Patan Hospital"}]}`))
			return
		}
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)

	opts := Options{URL: srv.URL, Timeout: time.Second, SnapshotPath: path}
	require.NoError(t, NewSource(opts).Load(context.Background()))
	fresh.Store(true)

	src := NewSource(opts)
	require.NoError(t, src.RestoreSnapshot())
	assert.True(t, src.Loaded())
	assert.True(t, src.Stats().Stale)
	assert.Len(t, src.Records(), 2)

	require.NoError(t, src.Load(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
	require.Len(t, src.Records(), 1)
	assert.Equal(t, Text("Patan Hospital"), src.Records()[0].Organisation)
	assert.False(t, src.Stats().Stale)

	require.NoError(t, src.Load(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestRestoredSnapshotServedWhileFeedDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essentials.msgpack")
	var down atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)

	opts := Options{URL: srv.URL, Timeout: time.Second, SnapshotPath: path, RetryAfter: time.Hour}
	require.NoError(t, NewSource(opts).Load(context.Background()))
	down.Store(true)

	src := NewSource(opts)
	require.NoError(t, src.RestoreSnapshot())

	assert.Error(t, src.Load(context.Background()))
	assert.ErrorIs(t, src.Load(context.Background()), ErrCoolingDown)
	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, src.Records(), 2, "snapshot copy stays in place")
	assert.True(t, src.Stats().Stale)
}

func TestStopAbortsInFlightRefresh(t *testing.T) {
	entered := make(chan struct{}, 1)
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
			_, _ = w.Write([]byte(feed))
		}
	}))
	t.Cleanup(srv.Close)

	src := NewSource(Options{URL: srv.URL, Timeout: 10 * time.Second, RefreshInterval: 10 * time.Millisecond})
	var reloads atomic.Int32
	src.OnReload(func([]Record) { reloads.Add(1) })

	src.Start()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop never fetched")
	}

	stopped := make(chan struct{})
	go func() {
		src.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a fetch was in flight")
	}

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not cancelled")
	}
	assert.Equal(t, int32(0), reloads.Load())
	assert.False(t, src.Loaded())
	assert.Equal(t, 0, src.Stats().Failures, "aborting on Stop is not a feed failure")
	assert.ErrorIs(t, src.Refresh(context.Background()), ErrStopped)
}
