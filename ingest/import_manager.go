// Package ingest implements the write facade over the KV substrate (spec
// §4.5 Import manager), the per-run ingest tracker (§4.10), and the bulk
// ingest pipeline (§4.7). The get-existing/compare/append-or-update flow is
// grounded on store.Store.Put; the single coarse write-mutex follows the
// spec's explicit allowance for single-writer serialization.
package ingest

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/NPS-DEEP/hashdb-sub002/bloom"
	"github.com/NPS-DEEP/hashdb-sub002/errs"
	"github.com/NPS-DEEP/hashdb-sub002/hashcodec"
	"github.com/NPS-DEEP/hashdb-sub002/kv"
	"github.com/NPS-DEEP/hashdb-sub002/records"
)

var log = logging.Logger("hashdb/ingest")

// Counters tallies the change counters named in spec §4.5 and reported in
// the trailing summary (spec §7).
type Counters struct {
	HashesInserted                        uint64
	HashesNotInsertedDuplicateElement     uint64
	HashesNotInsertedExceedsMax           uint64
	HashesNotInsertedInvalidByteAlignment uint64
	SourceNamesInserted                   uint64
	SourceNamesAlreadyPresent             uint64
}

// ImportManager is the single write facade for a database. A single
// instance serializes all writes through an internal mutex; multiple
// goroutines may call its methods concurrently, per spec §4.5 Concurrency.
type ImportManager struct {
	mu sync.Mutex

	hashStore       *kv.Store
	sourceStore     *kv.Store
	sourceNameStore *kv.Store
	fileHashIndex   *kv.Store
	bloomBuilder    *bloom.Builder // nil if Bloom is disabled

	prefixBits       uint32
	suffixBytes      uint32
	sectorSize       uint64
	maxIDOffsetPairs uint64

	counters Counters
}

// New builds an ImportManager over the given stores and parameters.
func New(hashStore, sourceStore, sourceNameStore, fileHashIndex *kv.Store, bloomBuilder *bloom.Builder, prefixBits, suffixBytes uint32, sectorSize, maxIDOffsetPairs uint64) *ImportManager {
	return &ImportManager{
		hashStore:        hashStore,
		sourceStore:      sourceStore,
		sourceNameStore:  sourceNameStore,
		fileHashIndex:    fileHashIndex,
		bloomBuilder:     bloomBuilder,
		prefixBits:       prefixBits,
		suffixBytes:      suffixBytes,
		sectorSize:       sectorSize,
		maxIDOffsetPairs: maxIDOffsetPairs,
	}
}

// Counters returns a snapshot of the current change counters.
func (im *ImportManager) Counters() Counters {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.counters
}

// internSource finds or allocates the source_id for fileBinaryHash, the Go
// analog of bi_store_t::insert_value: a fresh ID is the current count of
// entries plus one, assigned monotonically and never reused. A fresh ID also
// gets a source record holding only the file hash, which InsertSourceData
// fills in later.
func (im *ImportManager) internSource(fileBinaryHash []byte) (sourceID uint64, isNew bool, err error) {
	indexKey := records.FileHashIndexKey(fileBinaryHash)
	value, err := im.fileHashIndex.Get(indexKey)
	if err == nil {
		return records.DecodeFileHashIndexValue(value), false, nil
	}
	if err != errs.ErrNotFound {
		return 0, false, err
	}
	sourceID = uint64(im.fileHashIndex.Len()) + 1
	if err := im.fileHashIndex.Insert(indexKey, records.EncodeFileHashIndexValue(sourceID)); err != nil {
		return 0, false, err
	}
	if err := im.sourceStore.Insert(records.SourceKey(sourceID), records.EncodeSource(records.Source{FileBinaryHash: fileBinaryHash})); err != nil {
		return 0, false, err
	}
	return sourceID, true, nil
}

// InsertSourceName interns the source by file hash, adding the (repo,
// filename) name idempotently. Returns the (possibly newly allocated)
// source_id, per spec §4.5.
func (im *ImportManager) InsertSourceName(fileBinaryHash []byte, repo, filename string) (uint64, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	sourceID, _, err := im.internSource(fileBinaryHash)
	if err != nil {
		return 0, err
	}
	nameKey := records.NameKey(sourceID, repo, filename)
	if im.sourceNameStore.Has(nameKey) {
		im.counters.SourceNamesAlreadyPresent++
		return sourceID, nil
	}
	if err := im.sourceNameStore.Insert(nameKey, nil); err != nil {
		return 0, err
	}
	im.counters.SourceNamesInserted++
	return sourceID, nil
}

// InsertSourceData upserts the aggregate source record. Conflicting
// non-empty values are a fatal program error; empty-to-value updates are
// allowed, per spec §4.5.
func (im *ImportManager) InsertSourceData(fileBinaryHash []byte, filesize uint64, fileType string, zeroCount, nonprobativeCount uint64) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	sourceID, _, err := im.internSource(fileBinaryHash)
	if err != nil {
		return err
	}
	key := records.SourceKey(sourceID)
	existingValue, err := im.sourceStore.Get(key)
	if err != nil && err != errs.ErrNotFound {
		return err
	}

	next := records.Source{
		FileBinaryHash:    fileBinaryHash,
		FileSize:          filesize,
		FileType:          fileType,
		ZeroCount:         zeroCount,
		NonprobativeCount: nonprobativeCount,
	}
	if err == errs.ErrNotFound {
		return im.sourceStore.Insert(key, records.EncodeSource(next))
	}

	existing, err := records.DecodeSource(existingValue)
	if err != nil {
		return err
	}
	merged, err := mergeSource(existing, next)
	if err != nil {
		return err
	}
	return im.sourceStore.Upsert(key, records.EncodeSource(merged))
}

// mergeSource applies "empty-to-value updates are allowed and recorded;
// conflicting non-empty values are a fatal program error" per spec §4.5.
func mergeSource(existing, next records.Source) (records.Source, error) {
	out := existing
	if out.FileSize == 0 {
		out.FileSize = next.FileSize
	} else if next.FileSize != 0 && out.FileSize != next.FileSize {
		return out, errs.Invariantf("conflicting filesize for source: %d vs %d", out.FileSize, next.FileSize)
	}
	if out.FileType == "" {
		out.FileType = next.FileType
	} else if next.FileType != "" && out.FileType != next.FileType {
		return out, errs.Invariantf("conflicting file_type for source: %q vs %q", out.FileType, next.FileType)
	}
	if out.ZeroCount == 0 {
		out.ZeroCount = next.ZeroCount
	} else if next.ZeroCount != 0 && out.ZeroCount != next.ZeroCount {
		return out, errs.Invariantf("conflicting zero_count for source: %d vs %d", out.ZeroCount, next.ZeroCount)
	}
	if out.NonprobativeCount == 0 {
		out.NonprobativeCount = next.NonprobativeCount
	} else if next.NonprobativeCount != 0 && out.NonprobativeCount != next.NonprobativeCount {
		return out, errs.Invariantf("conflicting nonprobative_count for source: %d vs %d", out.NonprobativeCount, next.NonprobativeCount)
	}
	return out, nil
}

// InsertHash appends (source_id, file_offset, entropy, label) to the
// HashStore record for H, per spec §4.5.
func (im *ImportManager) InsertHash(h, fileBinaryHash []byte, fileOffset, entropy uint64, label string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if fileOffset%im.sectorSize != 0 {
		im.counters.HashesNotInsertedInvalidByteAlignment++
		return nil
	}

	sourceID, _, err := im.internSource(fileBinaryHash)
	if err != nil {
		return err
	}

	key, storedSuffix, err := hashcodec.EncodeKey(h, im.prefixBits, im.suffixBytes)
	if err != nil {
		return err
	}
	var tuples []hashcodec.Tuple
	existingValue, err := im.hashStore.Get(key)
	switch err {
	case nil:
		storedSuffix, tuples, err = hashcodec.DecodeValue(int(im.suffixBytes), existingValue)
		if err != nil {
			return err
		}
	case errs.ErrNotFound:
		// fresh record, tuples stays nil
	default:
		return err
	}

	newTuple := hashcodec.Tuple{SourceID: sourceID, Offset: fileOffset, Entropy: entropy, Label: []byte(label)}
	tuples, appendErr := hashcodec.AppendTuple(tuples, newTuple, im.maxIDOffsetPairs)
	switch appendErr {
	case nil:
		// fall through to write
	case hashcodec.ErrExceedsMax:
		im.counters.HashesNotInsertedExceedsMax++
		return nil
	case errs.ErrAlreadyExists:
		im.counters.HashesNotInsertedDuplicateElement++
		return nil
	default:
		return appendErr
	}

	if im.bloomBuilder != nil {
		im.bloomBuilder.Add(h)
	}
	value := hashcodec.EncodeValue(storedSuffix, tuples)
	if err := im.hashStore.Upsert(key, value); err != nil {
		return err
	}
	im.counters.HashesInserted++
	return nil
}
