// Package scan implements the read-only facade over the KV substrate and
// Bloom filter (spec §4.4): point lookup by block hash, ordered iteration
// over block hashes and sources, source-name/metadata retrieval, and JSON
// expansion. Grounded on store.Store's Get/Has-then-verify pattern for
// point lookup and index.Index's restartable cursor for ordered walks.
package scan

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"sort"

	logging "github.com/ipfs/go-log/v2"

	"github.com/NPS-DEEP/hashdb-sub002/bloom"
	"github.com/NPS-DEEP/hashdb-sub002/errs"
	"github.com/NPS-DEEP/hashdb-sub002/hashcodec"
	"github.com/NPS-DEEP/hashdb-sub002/kv"
	"github.com/NPS-DEEP/hashdb-sub002/records"
)

var log = logging.Logger("hashdb/scan")

// Manager is a read-only view; concurrent readers are allowed and it never
// mutates the underlying stores, per spec §4.4 "Thread safety".
type Manager struct {
	hashStore       *kv.Store
	sourceStore     *kv.Store
	sourceNameStore *kv.Store
	fileHashIndex   *kv.Store
	bloomFilter     *bloom.Filter // nil if Bloom is disabled
	prefixBits      uint32
	suffixBytes     uint32
}

// New builds a Manager over the given stores.
func New(hashStore, sourceStore, sourceNameStore, fileHashIndex *kv.Store, bloomFilter *bloom.Filter, prefixBits, suffixBytes uint32) *Manager {
	return &Manager{
		hashStore:       hashStore,
		sourceStore:     sourceStore,
		sourceNameStore: sourceNameStore,
		fileHashIndex:   fileHashIndex,
		bloomFilter:     bloomFilter,
		prefixBits:      prefixBits,
		suffixBytes:     suffixBytes,
	}
}

// HashResult is the decoded record returned by FindHash.
type HashResult struct {
	Tuples []hashcodec.Tuple
}

// FindHash consults the Bloom filter first; on a positive, looks up
// HashStore; on hit, verifies full-hash equality via hashcodec.FullHash.
func (m *Manager) FindHash(h []byte) (*HashResult, bool, error) {
	if m.bloomFilter != nil && !m.bloomFilter.MaybeContains(h) {
		return nil, false, nil
	}
	key, _, err := hashcodec.EncodeKey(h, m.prefixBits, m.suffixBytes)
	if err != nil {
		return nil, false, err
	}
	value, err := m.hashStore.Get(key)
	if err == errs.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	storedSuffix, tuples, err := hashcodec.DecodeValue(int(m.suffixBytes), value)
	if err != nil {
		return nil, false, err
	}
	full := hashcodec.FullHash(key, m.prefixBits, storedSuffix)
	if string(full) != string(h) {
		// Prefix/suffix collision across distinct full hashes; matches the
		// "not found" case per spec §4.4 since no exact H is stored here.
		return nil, false, nil
	}
	return &HashResult{Tuples: tuples}, true, nil
}

// FindHashCount returns len(tuples), 0 if not found.
func (m *Manager) FindHashCount(h []byte) (uint64, error) {
	res, found, err := m.FindHash(h)
	if err != nil || !found {
		return 0, err
	}
	return uint64(len(res.Tuples)), nil
}

// FindSource looks up the aggregate source record by source_id.
func (m *Manager) FindSource(sourceID uint64) (*records.Source, bool, error) {
	value, err := m.sourceStore.Get(records.SourceKey(sourceID))
	if err == errs.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	src, err := records.DecodeSource(value)
	if err != nil {
		return nil, false, err
	}
	return &src, true, nil
}

// FindSourceID resolves a file_binary_hash to its interned source_id.
func (m *Manager) FindSourceID(fileBinaryHash []byte) (uint64, bool, error) {
	value, err := m.fileHashIndex.Get(records.FileHashIndexKey(fileBinaryHash))
	if err == errs.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return records.DecodeFileHashIndexValue(value), true, nil
}

// FindSourceNames returns every (repository_name, filename) pair recorded
// for sourceID.
func (m *Manager) FindSourceNames(sourceID uint64) ([]records.Name, error) {
	prefix := records.NamePrefix(sourceID)
	var names []records.Name
	cur := m.sourceNameStore.Iterate(prefix)
	for {
		key, _, ok := cur.Next()
		if !ok {
			break
		}
		if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
			break
		}
		_, name, err := records.DecodeNameKey(key)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// HashFirst returns the first block hash in ascending (prefix, suffix)
// order, per spec §4.4's deterministic full-database walk.
func (m *Manager) HashFirst() ([]byte, bool, error) {
	return m.hashNext(nil)
}

// HashNext returns the next block hash strictly after prevH.
func (m *Manager) HashNext(prevH []byte) ([]byte, bool, error) {
	key, _, err := hashcodec.EncodeKey(prevH, m.prefixBits, m.suffixBytes)
	if err != nil {
		return nil, false, err
	}
	return m.hashNext(key)
}

func (m *Manager) hashNext(afterKey []byte) ([]byte, bool, error) {
	cur := m.hashStore.Iterate(afterKey)
	for {
		key, value, ok := cur.Next()
		if !ok {
			return nil, false, nil
		}
		if afterKey != nil && string(key) == string(afterKey) {
			continue
		}
		storedSuffix, _, err := hashcodec.DecodeValue(int(m.suffixBytes), value)
		if err != nil {
			return nil, false, err
		}
		return hashcodec.FullHash(key, m.prefixBits, storedSuffix), true, nil
	}
}

// SourceFirst returns the lowest source_id in the database.
func (m *Manager) SourceFirst() (uint64, bool, error) {
	cur := m.sourceStore.Iterate(nil)
	key, _, ok := cur.Next()
	if !ok {
		return 0, false, nil
	}
	return records.DecodeSourceKey(key), true, nil
}

// SourceNext returns the next source_id strictly after prevID.
func (m *Manager) SourceNext(prevID uint64) (uint64, bool, error) {
	cur := m.sourceStore.Iterate(records.SourceKey(prevID))
	for {
		key, _, ok := cur.Next()
		if !ok {
			return 0, false, nil
		}
		id := records.DecodeSourceKey(key)
		if id == prevID {
			continue
		}
		return id, true, nil
	}
}

// ScanMode selects which of the three expanded-JSON shapes FindHashJSON
// produces, per spec §6.
type ScanMode int

const (
	ModeCountOnly ScanMode = iota
	ModeSourceIDs
	ModeSourceIDsNamesMetadata
)

// expandedHashJSON mirrors the "Expanded scan JSON" schema in spec §6.
type expandedHashJSON struct {
	BlockHash    string           `json:"block_hash"`
	Count        int              `json:"count"`
	SourceListID uint32           `json:"source_list_id"`
	Sources      []sourceEntryRaw `json:"sources,omitempty"`
}

type sourceEntryRaw struct {
	FileHash   string         `json:"file_hash,omitempty"`
	FileOffset uint64         `json:"file_offset"`
	Label      string         `json:"label,omitempty"`
	FileSize   *uint64        `json:"filesize,omitempty"`
	FileType   *string        `json:"file_type,omitempty"`
	Names      []nameEntryRaw `json:"names,omitempty"`
	SourceID   *uint64        `json:"source_id,omitempty"`
}

type nameEntryRaw struct {
	RepositoryName string `json:"repository_name"`
	Filename       string `json:"filename"`
}

// FindHashJSON produces the expanded record for H in one of the three scan
// modes, per spec §6. maxSources bounds the sources array; if the tuple
// count exceeds it, the sources array is omitted entirely.
func (m *Manager) FindHashJSON(mode ScanMode, h []byte, maxSources int) (string, error) {
	res, found, err := m.FindHash(h)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errs.ErrNotFound
	}

	ids := make([]int, 0, len(res.Tuples))
	for _, t := range res.Tuples {
		ids = append(ids, int(t.SourceID))
	}
	sort.Ints(ids)
	listID := sourceListID(ids)

	out := expandedHashJSON{
		BlockHash:    records.HexHash(h),
		Count:        len(res.Tuples),
		SourceListID: listID,
	}

	if mode == ModeCountOnly || len(res.Tuples) > maxSources {
		return marshal(out)
	}

	seen := make(map[uint64]bool)
	for _, t := range res.Tuples {
		entry := sourceEntryRaw{FileOffset: t.Offset, Label: string(t.Label)}
		if mode == ModeSourceIDsNamesMetadata && !seen[t.SourceID] {
			seen[t.SourceID] = true
			src, ok, err := m.FindSource(t.SourceID)
			if err != nil {
				return "", err
			}
			if ok {
				entry.FileHash = records.HexHash(src.FileBinaryHash)
				fs := src.FileSize
				ft := src.FileType
				entry.FileSize = &fs
				entry.FileType = &ft
				names, err := m.FindSourceNames(t.SourceID)
				if err != nil {
					return "", err
				}
				for _, n := range names {
					entry.Names = append(entry.Names, nameEntryRaw{RepositoryName: n.Repository, Filename: n.Filename})
				}
			}
		} else {
			id := t.SourceID
			entry.SourceID = &id
		}
		out.Sources = append(out.Sources, entry)
	}
	return marshal(out)
}

// sourceListID is CRC-32 over the sorted set of source IDs attached to a
// block hash, a stable identifier for "the same set of sources", per spec §6.
func sourceListID(sortedIDs []int) uint32 {
	var buf []byte
	for i, id := range sortedIDs {
		if i > 0 && id == sortedIDs[i-1] {
			continue
		}
		buf = append(buf, []byte(fmt.Sprintf("%d,", id))...)
	}
	return crc32.ChecksumIEEE(buf)
}

func marshal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
