package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceKeyOrdering(t *testing.T) {
	require.Less(t, string(SourceKey(1)), string(SourceKey(2)))
	require.Equal(t, uint64(5), DecodeSourceKey(SourceKey(5)))
}

func TestSourceEncodeDecodeRoundTrip(t *testing.T) {
	s := Source{
		FileBinaryHash:    []byte{0xDE, 0xAD, 0xBE, 0xEF},
		FileSize:          4096,
		FileType:          "exe",
		ZeroCount:         3,
		NonprobativeCount: 7,
	}
	got, err := DecodeSource(EncodeSource(s))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestNameKeyRoundTrip(t *testing.T) {
	key := NameKey(42, "repo1", "path/to/file.bin")
	id, name, err := DecodeNameKey(key)
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)
	require.Equal(t, Name{Repository: "repo1", Filename: "path/to/file.bin"}, name)
}

func TestNamePrefixMatchesNameKey(t *testing.T) {
	prefix := NamePrefix(9)
	key := NameKey(9, "r", "f")
	require.Equal(t, prefix, key[:len(prefix)])
}

func TestFileHashIndexValueRoundTrip(t *testing.T) {
	v := EncodeFileHashIndexValue(123)
	require.Equal(t, uint64(123), DecodeFileHashIndexValue(v))
}

func TestHexHash(t *testing.T) {
	require.Equal(t, "deadbeef", HexHash([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
}
