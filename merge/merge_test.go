package merge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/ingest"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

type testDB struct {
	d  *db.Database
	im *ingest.ImportManager
	sm *scan.Manager
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	d, err := db.Create(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	im := ingest.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, d.BloomBuilder,
		d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes, uint64(d.Settings.SectorSize), d.Settings.MaxIDOffsetPairs)
	sm := scan.New(d.HashStore, d.SourceStore, d.SourceNameStore, d.FileHashIndex, nil,
		d.Settings.HashPrefixBits, d.Settings.HashSuffixBytes)
	return &testDB{d: d, im: im, sm: sm}
}

func testHash(seed byte) []byte {
	h := make([]byte, 5)
	for i := range h {
		h[i] = seed + byte(i)
	}
	return h
}

func TestAddCopiesEverything(t *testing.T) {
	a := newTestDB(t)
	b := newTestDB(t)

	h := testHash(1)
	require.NoError(t, a.im.InsertHash(h, []byte("fileA"), 0, 10, "R"))

	require.NoError(t, Add(a.sm, b.im))

	res, found, err := b.sm.FindHash(h)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, res.Tuples, 1)
}

func TestIntersectKeepsOnlyCommonPairs(t *testing.T) {
	a := newTestDB(t)
	b := newTestDB(t)
	c := newTestDB(t)

	shared := testHash(1)
	onlyA := testHash(2)

	require.NoError(t, a.im.InsertHash(shared, []byte("f1"), 0, 0, ""))
	require.NoError(t, b.im.InsertHash(shared, []byte("f1"), 0, 0, ""))
	require.NoError(t, a.im.InsertHash(onlyA, []byte("f1"), 0, 0, ""))

	require.NoError(t, Intersect(a.sm, b.sm, c.im))

	_, found, err := c.sm.FindHash(shared)
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = c.sm.FindHash(onlyA)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSubtractKeepsOnlyUniqueToA(t *testing.T) {
	a := newTestDB(t)
	b := newTestDB(t)
	c := newTestDB(t)

	shared := testHash(1)
	onlyA := testHash(2)

	require.NoError(t, a.im.InsertHash(shared, []byte("f1"), 0, 0, ""))
	require.NoError(t, b.im.InsertHash(shared, []byte("f1"), 0, 0, ""))
	require.NoError(t, a.im.InsertHash(onlyA, []byte("f1"), 0, 0, ""))

	require.NoError(t, Subtract(a.sm, b.sm, c.im))

	_, found, err := c.sm.FindHash(onlyA)
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = c.sm.FindHash(shared)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeduplicateKeepsOnlySingleTupleHashes(t *testing.T) {
	a := newTestDB(t)
	b := newTestDB(t)

	unique := testHash(1)
	shared := testHash(2)

	require.NoError(t, a.im.InsertHash(unique, []byte("f1"), 0, 0, ""))
	require.NoError(t, a.im.InsertHash(shared, []byte("f1"), 0, 0, ""))
	require.NoError(t, a.im.InsertHash(shared, []byte("f2"), 0, 0, ""))

	require.NoError(t, Deduplicate(a.sm, b.im))

	_, found, err := b.sm.FindHash(unique)
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = b.sm.FindHash(shared)
	require.NoError(t, err)
	require.False(t, found)
}
