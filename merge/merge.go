// Package merge implements the set-algebraic operators over two or more
// scan managers writing into one import manager (spec §4.10). Each operator
// walks one input in ascending order via scan.Manager's hash_first/hash_next
// and looks each hash up in the other input(s) by point lookup, the same
// shape as store.Store's translateIndex: open two stores, walk one in order,
// write into the other.
package merge

import (
	"bytes"

	logging "github.com/ipfs/go-log/v2"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
	"github.com/NPS-DEEP/hashdb-sub002/hashcodec"
	"github.com/NPS-DEEP/hashdb-sub002/ingest"
	"github.com/NPS-DEEP/hashdb-sub002/records"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

var log = logging.Logger("hashdb/merge")

// copySourceAndNames copies the source record and names for sourceID in
// src into dst, preferring not to overwrite an existing record in dst
// (spec §4.10's "copied from whichever of {A,B} has them, A preferred").
func copySourceAndNames(src *scan.Manager, dst *ingest.ImportManager, sourceID uint64) error {
	source, ok, err := src.FindSource(sourceID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := dst.InsertSourceData(source.FileBinaryHash, source.FileSize, source.FileType, source.ZeroCount, source.NonprobativeCount); err != nil {
		return err
	}
	names, err := src.FindSourceNames(sourceID)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, err := dst.InsertSourceName(source.FileBinaryHash, n.Repository, n.Filename); err != nil {
			return err
		}
	}
	return nil
}

// walkHashes calls fn for every distinct block hash in src in ascending
// order, the Go analog of index.NewIterator driving a full-database walk.
func walkHashes(src *scan.Manager, fn func(h []byte) error) error {
	h, ok, err := src.HashFirst()
	for ok && err == nil {
		if err := fn(h); err != nil {
			return err
		}
		h, ok, err = src.HashNext(h)
	}
	return err
}

// Add copies every tuple of every block hash in A into B, per spec §4.10
// "add(A -> B)".
func Add(a *scan.Manager, b *ingest.ImportManager) error {
	return walkHashes(a, func(h []byte) error {
		res, found, err := a.FindHash(h)
		if err != nil || !found {
			return err
		}
		for _, t := range res.Tuples {
			if err := copyTuple(a, b, h, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// copyTuple resolves t's file_binary_hash from A, copies the source and
// names into B, then inserts the tuple into B, honoring B's
// max_id_offset_pairs via ImportManager.InsertHash.
func copyTuple(a *scan.Manager, b *ingest.ImportManager, h []byte, t hashcodec.Tuple) error {
	source, ok, err := a.FindSource(t.SourceID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Invariantf("merge: source %d referenced by hash record but missing", t.SourceID)
	}
	if err := copySourceAndNames(a, b, t.SourceID); err != nil {
		return err
	}
	return b.InsertHash(h, source.FileBinaryHash, t.Offset, t.Entropy, string(t.Label))
}

// AddMultiple walks the input databases one after another, each in
// ascending hash order; the first time a block hash is seen, it applies
// Add's per-hash logic from every input that holds that hash, in input
// order, per spec §4.10 "add_multiple(A1..An -> B)". Hashes are not
// visited in one global ascending order across inputs.
func AddMultiple(sources []*scan.Manager, b *ingest.ImportManager) error {
	seen := make(map[string]bool)
	for _, src := range sources {
		if err := walkHashes(src, func(h []byte) error {
			key := string(h)
			if seen[key] {
				return nil
			}
			seen[key] = true
			for _, s2 := range sources {
				res, found, err := s2.FindHash(h)
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				for _, t := range res.Tuples {
					if err := copyTuple(s2, b, h, t); err != nil {
						return err
					}
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// pairKey identifies a (file_binary_hash, offset) occurrence independent of
// source_id numbering, which may differ between databases A and B.
func pairKey(fileHash []byte, offset uint64) string {
	var buf bytes.Buffer
	buf.Write(fileHash)
	buf.WriteByte(0)
	buf.Write(records.SourceKey(offset))
	return buf.String()
}

// pairSet resolves every tuple of h in src to a (file_binary_hash, offset)
// set, keyed for cross-database comparison.
func pairSet(src *scan.Manager, h []byte) (map[string]hashcodec.Tuple, map[string][]byte, bool, error) {
	res, found, err := src.FindHash(h)
	if err != nil || !found {
		return nil, nil, found, err
	}
	pairs := make(map[string]hashcodec.Tuple, len(res.Tuples))
	fileHashes := make(map[string][]byte, len(res.Tuples))
	for _, t := range res.Tuples {
		source, ok, err := src.FindSource(t.SourceID)
		if err != nil {
			return nil, nil, false, err
		}
		if !ok {
			continue
		}
		key := pairKey(source.FileBinaryHash, t.Offset)
		pairs[key] = t
		fileHashes[key] = source.FileBinaryHash
	}
	return pairs, fileHashes, true, nil
}

// Intersect writes, for each H present in both A and B, the intersection of
// their (file_binary_hash, offset) sets into C with A's (entropy, label),
// per spec §4.10 "intersect(A,B -> C)".
func Intersect(a, b *scan.Manager, c *ingest.ImportManager) error {
	return walkHashes(a, func(h []byte) error {
		aPairs, aFileHashes, aFound, err := pairSet(a, h)
		if err != nil || !aFound {
			return err
		}
		bPairs, _, bFound, err := pairSet(b, h)
		if err != nil || !bFound {
			return nil
		}
		for key, t := range aPairs {
			if _, ok := bPairs[key]; !ok {
				continue
			}
			fileHash := aFileHashes[key]
			if err := copySourceOwning(a, b, fileHash, c); err != nil {
				return err
			}
			if err := c.InsertHash(h, fileHash, t.Offset, t.Entropy, string(t.Label)); err != nil {
				return err
			}
		}
		return nil
	})
}

// copySourceOwning copies fileHash's source record and names from whichever
// of {a,b} has them, preferring a, per spec §4.10.
func copySourceOwning(a, b *scan.Manager, fileHash []byte, c *ingest.ImportManager) error {
	if id, ok, err := a.FindSourceID(fileHash); err != nil {
		return err
	} else if ok {
		return copySourceAndNames(a, c, id)
	}
	if id, ok, err := b.FindSourceID(fileHash); err != nil {
		return err
	} else if ok {
		return copySourceAndNames(b, c, id)
	}
	return nil
}

// IntersectHash writes the union of tuples into C for each H present in
// both A and B by hash only, per spec §4.10 "intersect_hash(A,B -> C)" —
// resolved as a union per the Open Question decision in SPEC_FULL.
func IntersectHash(a, b *scan.Manager, c *ingest.ImportManager) error {
	return walkHashes(a, func(h []byte) error {
		_, _, bFound, err := b.FindHash(h)
		if err != nil {
			return err
		}
		if !bFound {
			return nil
		}
		if err := unionInto(a, h, c); err != nil {
			return err
		}
		return unionInto(b, h, c)
	})
}

func unionInto(src *scan.Manager, h []byte, c *ingest.ImportManager) error {
	res, found, err := src.FindHash(h)
	if err != nil || !found {
		return err
	}
	for _, t := range res.Tuples {
		if err := copyTuple(src, c, h, t); err != nil {
			return err
		}
	}
	return nil
}

// Subtract writes, for each H in A, every (file_binary_hash, offset) in A
// not present in B, per spec §4.10 "subtract(A,B -> C)".
func Subtract(a, b *scan.Manager, c *ingest.ImportManager) error {
	return walkHashes(a, func(h []byte) error {
		aPairs, aFileHashes, aFound, err := pairSet(a, h)
		if err != nil || !aFound {
			return err
		}
		bPairs, _, bFound, err := pairSet(b, h)
		if err != nil {
			return err
		}
		if !bFound {
			bPairs = nil
		}
		for key, t := range aPairs {
			if _, ok := bPairs[key]; ok {
				continue
			}
			fileHash := aFileHashes[key]
			if err := copySourceOwning(a, b, fileHash, c); err != nil {
				return err
			}
			if err := c.InsertHash(h, fileHash, t.Offset, t.Entropy, string(t.Label)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubtractHash writes all of A's tuples to C for each H whose count in B is
// zero, per spec §4.10 "subtract_hash(A,B -> C)".
func SubtractHash(a, b *scan.Manager, c *ingest.ImportManager) error {
	return walkHashes(a, func(h []byte) error {
		count, err := b.FindHashCount(h)
		if err != nil {
			return err
		}
		if count != 0 {
			return nil
		}
		return unionInto(a, h, c)
	})
}

// Deduplicate copies to B every H in A whose tuple count equals 1, per spec
// §4.10 "deduplicate(A -> B)".
func Deduplicate(a *scan.Manager, b *ingest.ImportManager) error {
	return walkHashes(a, func(h []byte) error {
		res, found, err := a.FindHash(h)
		if err != nil || !found {
			return err
		}
		if len(res.Tuples) != 1 {
			return nil
		}
		return copyTuple(a, b, h, res.Tuples[0])
	})
}
