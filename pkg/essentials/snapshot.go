package essentials

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nepalcovid19/searchserve/internal/utils"
)

const snapshotVersion = 1

// snapshot is the on-disk form of the last good payload.
type snapshot struct {
	Version   int       `msgpack:"v"`
	URL       string    `msgpack:"url"`
	FetchedAt time.Time `msgpack:"at"`
	Records   []Record  `msgpack:"r"`
}

// SaveSnapshot writes the cached copy to SnapshotPath as MessagePack.
func (s *Source) SaveSnapshot() error {
	s.mu.RLock()
	snap := snapshot{
		Version:   snapshotVersion,
		URL:       s.opts.URL,
		FetchedAt: s.fetchedAt,
		Records:   s.records,
	}
	loaded := s.loaded
	s.mu.RUnlock()

	if !loaded {
		return ErrNotLoaded
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return utils.WriteFileAtomic(s.opts.SnapshotPath, data)
}

// RestoreSnapshot loads SnapshotPath into the cache as a stale copy: it is
// served right away, and the next Load still fetches the live feed. It fails
// when the snapshot is missing or belongs to a different feed URL.
func (s *Source) RestoreSnapshot() error {
	data, err := os.ReadFile(s.opts.SnapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	if snap.URL != s.opts.URL {
		return fmt.Errorf("snapshot is for %s, not %s", snap.URL, s.opts.URL)
	}

	s.store(snap.Records, snap.FetchedAt, true)
	s.log.Debug("restored snapshot", "records", len(snap.Records), "fetchedAt", snap.FetchedAt)
	return nil
}
