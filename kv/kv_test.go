package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

func TestInsertGetHas(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert([]byte("a"), []byte("1")))
	require.ErrorIs(t, s.Insert([]byte("a"), []byte("2")), errs.ErrAlreadyExists)

	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.True(t, s.Has([]byte("a")))

	_, err = s.Get([]byte("missing"))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpsertAndDelete(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Upsert([]byte("k"), []byte("v1")))
	require.NoError(t, s.Upsert([]byte("k"), []byte("v2")))
	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
	require.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete([]byte("k")))
	require.False(t, s.Has([]byte("k")))
	require.Equal(t, 0, s.Len())
}

func TestCursorOrder(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	defer s.Close()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Insert([]byte(k), []byte(k)))
	}

	var got []string
	cur := s.Iterate(nil)
	for {
		k, _, ok := cur.Next()
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestReopenReplaysLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Insert([]byte("x"), []byte("y")))
	require.NoError(t, s1.Delete([]byte("x")))
	require.NoError(t, s1.Insert([]byte("p"), []byte("q")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	require.False(t, s2.Has([]byte("x")))
	v, err := s2.Get([]byte("p"))
	require.NoError(t, err)
	require.Equal(t, []byte("q"), v)
	require.Equal(t, 1, s2.Len())
}
