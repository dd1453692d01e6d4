// Package db wires the KV substrate, Bloom filter, and Settings into the
// on-disk directory layout named in spec §6: settings.json, bloom_filter,
// hash_store, source_store, source_name_store, file_hash_index,
// timestamp.json. Lifecycle (Open/Create/Close) is grounded on
// store.OpenStore's config-then-open pattern, generalized to open four KV
// stores instead of one index/primary pair.
package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"

	"github.com/NPS-DEEP/hashdb-sub002/bloom"
	"github.com/NPS-DEEP/hashdb-sub002/kv"
	"github.com/NPS-DEEP/hashdb-sub002/settings"
)

var log = logging.Logger("hashdb/db")

const (
	hashStoreFile       = "hash_store"
	sourceStoreFile     = "source_store"
	sourceNameStoreFile = "source_name_store"
	fileHashIndexFile   = "file_hash_index"
	bloomFile           = "bloom_filter"
	timestampFile       = "timestamp.json"
)

// Database is the top-level handle on one database directory, owning all
// stores and the Bloom filter exclusively for the life of the process, per
// spec §3 Ownership.
type Database struct {
	Dir      string
	Settings *settings.Settings
	RunID    uuid.UUID // identifies this open session in timestamp.json events

	HashStore       *kv.Store
	SourceStore     *kv.Store
	SourceNameStore *kv.Store
	FileHashIndex   *kv.Store // file_binary_hash -> source_id, per spec §3

	BloomBuilder *bloom.Builder // non-nil only while open for writing
	BloomFilter  *bloom.Filter  // non-nil once sealed and reopened

	mu        sync.Mutex
	tsFile    *os.File
	bloomPath string
}

// Create makes a new database directory at dir and writes its settings.
func Create(dir string, opts ...settings.Option) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("db: mkdir %s: %w", dir, err)
	}
	s, err := settings.Create(dir, opts...)
	if err != nil {
		return nil, err
	}
	return open(dir, s, true)
}

// Open opens an existing database directory, validating its settings.
func Open(dir string) (*Database, error) {
	s, err := settings.Load(dir)
	if err != nil {
		return nil, err
	}
	return open(dir, s, false)
}

func open(dir string, s *settings.Settings, fresh bool) (*Database, error) {
	d := &Database{Dir: dir, Settings: s, RunID: uuid.New(), bloomPath: filepath.Join(dir, bloomFile)}

	var err error
	if d.HashStore, err = kv.Open(filepath.Join(dir, hashStoreFile)); err != nil {
		return nil, err
	}
	if d.SourceStore, err = kv.Open(filepath.Join(dir, sourceStoreFile)); err != nil {
		d.HashStore.Close()
		return nil, err
	}
	if d.SourceNameStore, err = kv.Open(filepath.Join(dir, sourceNameStoreFile)); err != nil {
		d.HashStore.Close()
		d.SourceStore.Close()
		return nil, err
	}
	if d.FileHashIndex, err = kv.Open(filepath.Join(dir, fileHashIndexFile)); err != nil {
		d.HashStore.Close()
		d.SourceStore.Close()
		d.SourceNameStore.Close()
		return nil, err
	}

	if s.BloomIsUsed {
		if fresh {
			b, err := bloom.NewBuilder(bloom.Params{M: s.BloomMHashSize, K: s.BloomKHashFuncs})
			if err != nil {
				return nil, err
			}
			d.BloomBuilder = b
		} else if _, statErr := os.Stat(d.bloomPath); statErr == nil {
			f, err := bloom.Open(d.bloomPath)
			if err != nil {
				return nil, err
			}
			d.BloomFilter = f
			// Reopen as a builder too, so ingest into an existing database
			// can continue adding bits. Close reseals the builder's bits
			// wholesale, so the sealed bits must be loaded into the builder
			// now via Union or a second ingest would drop every bit set in
			// an earlier session, producing false negatives (forbidden by
			// spec §4.2).
			b, err := bloom.NewBuilder(bloom.Params{M: s.BloomMHashSize, K: s.BloomKHashFuncs})
			if err != nil {
				return nil, err
			}
			if err := b.Union(f); err != nil {
				return nil, err
			}
			d.BloomBuilder = b
		} else {
			b, err := bloom.NewBuilder(bloom.Params{M: s.BloomMHashSize, K: s.BloomKHashFuncs})
			if err != nil {
				return nil, err
			}
			d.BloomBuilder = b
		}
	}

	tsFile, err := os.OpenFile(filepath.Join(dir, timestampFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	d.tsFile = tsFile

	log.Infof("opened database at %s", dir)
	return d, nil
}

// TimestampEvent is one line of the append-only run log, per spec §6
// timestamp.json.
type TimestampEvent struct {
	Time  time.Time      `json:"time"`
	RunID string         `json:"run_id"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// LogEvent appends one JSON event to timestamp.json.
func (d *Database) LogEvent(event string, data map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, err := json.Marshal(TimestampEvent{Time: time.Now(), RunID: d.RunID.String(), Event: event, Data: data})
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = d.tsFile.Write(raw)
	return err
}

// Close flushes and closes every owned resource, aggregating every failure
// via multierr instead of reporting only the first, per SPEC_FULL §3.2 (an
// explicit improvement over store.Store.Close's single-cerr pattern).
func (d *Database) Close() error {
	var err error
	if d.BloomBuilder != nil {
		err = multierr.Append(err, d.BloomBuilder.Seal(d.bloomPath, ""))
	}
	err = multierr.Append(err, d.HashStore.Close())
	err = multierr.Append(err, d.SourceStore.Close())
	err = multierr.Append(err, d.SourceNameStore.Close())
	err = multierr.Append(err, d.FileHashIndex.Close())
	err = multierr.Append(err, d.tsFile.Close())
	return err
}

// Flush flushes every KV store without closing the database.
func (d *Database) Flush() error {
	var err error
	err = multierr.Append(err, d.HashStore.Flush())
	err = multierr.Append(err, d.SourceStore.Flush())
	err = multierr.Append(err, d.SourceNameStore.Flush())
	err = multierr.Append(err, d.FileHashIndex.Flush())
	return err
}
