package blockcalc

import (
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockHashZeroExtends(t *testing.T) {
	buf := []byte{1, 2, 3}
	got := BlockHash(buf, 0, 8)
	want := md5.Sum([]byte{1, 2, 3, 0, 0, 0, 0, 0})
	require.Equal(t, want, got)
}

func TestIsAllEqual(t *testing.T) {
	require.True(t, IsAllEqual(make([]byte, 512), 0, 512))
	buf := make([]byte, 512)
	buf[10] = 1
	require.False(t, IsAllEqual(buf, 0, 512))
}

func TestEntropyUniformIsHigherThanConstant(t *testing.T) {
	table := NewEntropyTable(256)
	constant := make([]byte, 256)
	uniform := make([]byte, 256)
	for i := range uniform {
		uniform[i] = byte(i)
	}
	lowEntropy := Entropy(table, constant, 0, 256)
	highEntropy := Entropy(table, uniform, 0, 256)
	require.Greater(t, highEntropy, lowEntropy)
}

func TestLabelWhitespace(t *testing.T) {
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = ' '
	}
	label := Label(buf, 0, 512)
	require.Contains(t, label, "W")
}

func TestLabelRamp(t *testing.T) {
	buf := make([]byte, 512)
	for i := 0; i+4 <= len(buf); i += 4 {
		v := uint32(i / 4)
		buf[i] = byte(v)
		buf[i+1] = byte(v >> 8)
		buf[i+2] = byte(v >> 16)
		buf[i+3] = byte(v >> 24)
	}
	label := Label(buf, 0, 512)
	require.Contains(t, label, "R")
}
