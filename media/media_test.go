package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRawReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.raw")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(10), r.Size())
	dst := make([]byte, 4)
	n, err := r.ReadAt(3, dst)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "3456", string(dst))
}

func TestOpenRawShortReadAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.raw")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	dst := make([]byte, 10)
	n, err := r.ReadAt(0, dst)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestOpenSplitConcatenatesMembers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.000"), []byte("AAAA"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.001"), []byte("BBBB"), 0o644))

	r, err := Open(filepath.Join(dir, "img.000"))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(8), r.Size())
	dst := make([]byte, 8)
	n, err := r.ReadAt(0, dst)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "AAAABBBB", string(dst))
}

func TestOpenSplitReadAtSpansMembers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.000"), []byte("AAAA"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img.001"), []byte("BBBB"), 0o644))

	r, err := Open(filepath.Join(dir, "img.000"))
	require.NoError(t, err)
	defer r.Close()

	dst := make([]byte, 4)
	n, err := r.ReadAt(2, dst)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "AABB", string(dst))
}

func TestIterateChunksCoverFullSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.raw")
	buf := make([]byte, DataChunkSize+100)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	chunks := Iterate(r)
	require.Len(t, chunks, 2)
	require.Equal(t, uint64(0), chunks[0].Offset)
	require.Equal(t, uint64(DataChunkSize), chunks[0].Length)
	require.Equal(t, uint64(DataChunkSize), chunks[1].Offset)
	require.Equal(t, uint64(100), chunks[1].Length)
}

func TestMemoryReaderReadAtAndSize(t *testing.T) {
	r := NewMemoryReader([]byte("hello world"))
	require.Equal(t, uint64(11), r.Size())

	dst := make([]byte, 5)
	n, err := r.ReadAt(6, dst)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(dst))
}

func TestMemoryReaderReadAtPastEnd(t *testing.T) {
	r := NewMemoryReader([]byte("abc"))
	dst := make([]byte, 4)
	n, err := r.ReadAt(10, dst)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
