// Package kv implements the ordered key-value substrate shared by the
// HashStore, SourceStore, and SourceNameStore (spec component 1). It follows
// the shape of store.Store: an in-memory ordered index backed by an
// append-only on-disk log, opened once per logical store, with a single
// writer mutex serializing mutation and allowing concurrent readers.
package kv

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

var log = logging.Logger("hashdb/kv")

// record is one on-disk log entry: a key/value pair, or a delete marker
// (deleted=true) for the key, so replay can reconstruct final state without
// rewriting earlier entries.
type record struct {
	key     []byte
	value   []byte
	deleted bool
}

// Store is a single ordered byte-keyed store, matching the contract in
// spec §4.1: point insert-or-fail, insert-or-update, delete, point lookup,
// forward range iteration, and atomic single-key writes.
type Store struct {
	mu   sync.RWMutex
	file *os.File
	w    *bufio.Writer

	// index is the in-memory ordered position table, the direct analog of
	// store/index's in-memory bucket tables: keys sorted for range
	// iteration, values held fully in memory since this domain never
	// approaches the scale the teacher's index sharding exists for.
	keys   [][]byte
	values map[string][]byte
}

// Open opens or creates the single log file at path, replaying it fully
// into memory the way store.OpenStore replays its index on open.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	s := &Store{
		file:   f,
		values: make(map[string][]byte),
	}
	if err := s.replay(); err != nil {
		f.Close()
		return nil, fmt.Errorf("kv: replay %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	s.w = bufio.NewWriter(f)
	log.Debugf("opened %s with %d keys", path, len(s.keys))
	return s, nil
}

func (s *Store) replay() error {
	r := bufio.NewReader(s.file)
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.deleted {
			s.removeKey(rec.key)
			delete(s.values, string(rec.key))
			continue
		}
		if _, ok := s.values[string(rec.key)]; !ok {
			s.insertKey(rec.key)
		}
		s.values[string(rec.key)] = rec.value
	}
}

// record wire format: varint keylen, key bytes, 1 byte deleted-flag, varint
// valuelen (0 if deleted), value bytes. Grounded on the varint length-prefixed
// record framing used throughout gsfa/linkedlog.
func readRecord(r *bufio.Reader) (record, error) {
	keyLen, err := binary.ReadUvarint(r)
	if err != nil {
		return record{}, err
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return record{}, err
	}
	delFlag, err := r.ReadByte()
	if err != nil {
		return record{}, err
	}
	valLen, err := binary.ReadUvarint(r)
	if err != nil {
		return record{}, err
	}
	val := make([]byte, valLen)
	if valLen > 0 {
		if _, err := io.ReadFull(r, val); err != nil {
			return record{}, err
		}
	}
	return record{key: key, value: val, deleted: delFlag == 1}, nil
}

func writeRecord(w *bufio.Writer, rec record) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(rec.key)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	if _, err := w.Write(rec.key); err != nil {
		return err
	}
	var delByte byte
	if rec.deleted {
		delByte = 1
	}
	if err := w.WriteByte(delByte); err != nil {
		return err
	}
	n = binary.PutUvarint(buf[:], uint64(len(rec.value)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	if len(rec.value) > 0 {
		if _, err := w.Write(rec.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertKey(key []byte) {
	i := sort.Search(len(s.keys), func(i int) bool { return string(s.keys[i]) >= string(key) })
	s.keys = append(s.keys, nil)
	copy(s.keys[i+1:], s.keys[i:])
	k := make([]byte, len(key))
	copy(k, key)
	s.keys[i] = k
}

func (s *Store) removeKey(key []byte) {
	i := sort.Search(len(s.keys), func(i int) bool { return string(s.keys[i]) >= string(key) })
	if i < len(s.keys) && string(s.keys[i]) == string(key) {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
}

// appendAndSync performs the atomic single-key write: append the record to
// the log, flush the buffered writer, then fsync. Single-key atomicity is
// sufficient per spec §4.1; no cross-key transactions are required.
func (s *Store) appendAndSync(rec record) error {
	if err := writeRecord(s.w, rec); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Insert performs point insert-or-fail: returns errs.ErrAlreadyExists if key
// is already present.
func (s *Store) Insert(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[string(key)]; ok {
		return errs.ErrAlreadyExists
	}
	if err := s.appendAndSync(record{key: key, value: value}); err != nil {
		return err
	}
	s.insertKey(key)
	s.values[string(key)] = append([]byte(nil), value...)
	return nil
}

// Upsert performs point insert-or-update.
func (s *Store) Upsert(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.values[string(key)]
	if err := s.appendAndSync(record{key: key, value: value}); err != nil {
		return err
	}
	if !existed {
		s.insertKey(key)
	}
	s.values[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete performs point delete. Deleting an absent key is a no-op.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[string(key)]; !ok {
		return nil
	}
	if err := s.appendAndSync(record{key: key, deleted: true}); err != nil {
		return err
	}
	s.removeKey(key)
	delete(s.values, string(key))
	return nil
}

// Get performs point lookup, returning errs.ErrNotFound when absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[string(key)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Has reports presence without returning the value.
func (s *Store) Has(key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[string(key)]
	return ok
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Cursor is a forward range iterator, the Go analog of index.NewIterator.
type Cursor struct {
	s   *Store
	pos int
}

// Iterate returns a Cursor positioned at the first key >= from (or at the
// very first key if from is nil), for forward range iteration.
func (s *Store) Iterate(from []byte) *Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos := 0
	if from != nil {
		pos = sort.Search(len(s.keys), func(i int) bool { return string(s.keys[i]) >= string(from) })
	}
	return &Cursor{s: s, pos: pos}
}

// Next returns the next (key, value) pair in ascending key order, or
// ok=false when iteration is exhausted.
func (c *Cursor) Next() (key, value []byte, ok bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if c.pos >= len(c.s.keys) {
		return nil, nil, false
	}
	k := c.s.keys[c.pos]
	v := c.s.values[string(k)]
	c.pos++
	return append([]byte(nil), k...), append([]byte(nil), v...), true
}

// Flush forces buffered writes to disk. Writes are already synced per-call
// by appendAndSync; Flush exists for callers that want an explicit
// checkpoint before reporting progress.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close flushes and releases the underlying file, aggregating every failure
// via multierr instead of returning only the first one.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	err = multierr.Append(err, s.w.Flush())
	err = multierr.Append(err, s.file.Close())
	return err
}
