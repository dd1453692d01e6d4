package hashcodec

import (
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

func sampleHash(b byte) []byte {
	sum := md5.Sum([]byte{b})
	return sum[:]
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	tuples := []Tuple{
		{SourceID: 1, Offset: 0, Entropy: 100, Label: []byte("RH")},
		{SourceID: 2, Offset: 512, Entropy: 0, Label: nil},
	}
	value := EncodeValue([]byte{0xAB, 0xCD}, tuples)
	suffix, got, err := DecodeValue(2, value)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, suffix)
	require.Len(t, got, 2)
	require.Equal(t, tuples[0].SourceID, got[0].SourceID)
	require.Equal(t, tuples[0].Label, got[0].Label)
	require.Equal(t, []byte(nil), got[1].Label)
}

func TestEncodeKeyAndFullHashRoundTrip(t *testing.T) {
	h := sampleHash(7)
	key, suffix, err := EncodeKey(h, 8, 2)
	require.NoError(t, err)
	require.Len(t, key, 3)
	full := FullHash(key, 8, suffix)
	require.Equal(t, h, full)
}

func TestEncodeKeyRejectsNonByteAlignedPrefix(t *testing.T) {
	_, _, err := EncodeKey(sampleHash(1), 5, 2)
	require.Error(t, err)
}

func TestAppendTupleEnforcesUniquenessAndCap(t *testing.T) {
	var tuples []Tuple
	t1 := Tuple{SourceID: 1, Offset: 0}
	tuples, err := AppendTuple(tuples, t1, 2)
	require.NoError(t, err)

	_, err = AppendTuple(tuples, t1, 2)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	tuples, err = AppendTuple(tuples, Tuple{SourceID: 2, Offset: 0}, 2)
	require.NoError(t, err)

	_, err = AppendTuple(tuples, Tuple{SourceID: 3, Offset: 0}, 2)
	require.ErrorIs(t, err, ErrExceedsMax)
}

func TestHasTuple(t *testing.T) {
	tuples := []Tuple{{SourceID: 5, Offset: 10}}
	require.True(t, HasTuple(tuples, 5, 10))
	require.False(t, HasTuple(tuples, 5, 11))
}
