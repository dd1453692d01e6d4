package forensicpath

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NPS-DEEP/hashdb-sub002/media"
)

func TestParseSimpleOffset(t *testing.T) {
	off0, rest, err := Parse("1024")
	require.NoError(t, err)
	require.Equal(t, uint64(1024), off0)
	require.Empty(t, rest)
}

func TestParseNestedPath(t *testing.T) {
	off0, rest, err := Parse("0-zip-100")
	require.NoError(t, err)
	require.Equal(t, uint64(0), off0)
	require.Len(t, rest, 1)
	require.Equal(t, uint64(100), rest[0].offset)
}

func TestParseRejectsUnpairedComponents(t *testing.T) {
	_, _, err := Parse("0-zip")
	require.Error(t, err)
}

func TestParseRejectsUnknownCodec(t *testing.T) {
	_, _, err := Parse("0-RAR-10")
	require.Error(t, err)
}

func TestReadResolvesNestedZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: "a.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rd := media.NewMemoryReader(buf.Bytes())
	out, err := Read(rd, "0-zip-0", 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))
}
