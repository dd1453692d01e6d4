package bloom

import (
	"crypto/md5"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func hashOf(b byte) []byte {
	sum := md5.Sum([]byte{b})
	return sum[:]
}

func TestBuilderSealAndOpen(t *testing.T) {
	params := Params{M: 16, K: 3}
	b, err := NewBuilder(params)
	require.NoError(t, err)

	present := hashOf(1)
	b.Add(present)

	path := filepath.Join(t.TempDir(), "bloom_filter")
	require.NoError(t, b.Seal(path, "test message"))

	f, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, params, f.Params())
	require.Equal(t, "test message", f.Message())
	require.True(t, f.MaybeContains(present))
}

func TestNoFalseNegatives(t *testing.T) {
	b, err := NewBuilder(Params{M: 20, K: 3})
	require.NoError(t, err)
	var added [][]byte
	for i := 0; i < 200; i++ {
		h := hashOf(byte(i))
		added = append(added, h)
		b.Add(h)
	}
	path := filepath.Join(t.TempDir(), "bloom_filter")
	require.NoError(t, b.Seal(path, ""))

	f, err := Open(path)
	require.NoError(t, err)
	for _, h := range added {
		require.True(t, f.MaybeContains(h))
	}
}

func TestUnionPreservesBitsAcrossReseal(t *testing.T) {
	params := Params{M: 16, K: 3}
	path := filepath.Join(t.TempDir(), "bloom_filter")

	first := hashOf(1)
	b1, err := NewBuilder(params)
	require.NoError(t, err)
	b1.Add(first)
	require.NoError(t, b1.Seal(path, ""))

	// Simulate reopening the database for a second ingest run: load the
	// sealed filter, union it into a fresh builder, add a new hash, then
	// reseal. The first hash must still test positive afterward.
	f, err := Open(path)
	require.NoError(t, err)
	b2, err := NewBuilder(params)
	require.NoError(t, err)
	require.NoError(t, b2.Union(f))
	second := hashOf(2)
	b2.Add(second)
	require.NoError(t, b2.Seal(path, ""))

	reopened, err := Open(path)
	require.NoError(t, err)
	require.True(t, reopened.MaybeContains(first))
	require.True(t, reopened.MaybeContains(second))
}

func TestUnionRejectsMismatchedParams(t *testing.T) {
	b, err := NewBuilder(Params{M: 16, K: 3})
	require.NoError(t, err)

	other, err := NewBuilder(Params{M: 20, K: 3})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bloom_filter")
	require.NoError(t, other.Seal(path, ""))
	f, err := Open(path)
	require.NoError(t, err)

	require.Error(t, b.Union(f))
}

func TestEstimateParams(t *testing.T) {
	p := EstimateParams(1000)
	require.Equal(t, uint32(3), p.K)
	require.GreaterOrEqual(t, p.bits(), uint64(1000))
}

func TestInvalidParamsRejected(t *testing.T) {
	_, err := NewBuilder(Params{M: 1, K: 3})
	require.Error(t, err)
	_, err = NewBuilder(Params{M: 10, K: 0})
	require.Error(t, err)
}
