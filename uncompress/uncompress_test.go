package uncompress

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanFindsZipSignature(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte("junk prefix"))
	zw := zip.NewWriter(&buf)
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: "a.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dets := Scan(buf.Bytes())
	require.NotEmpty(t, dets)
	require.Equal(t, CodecZip, dets[0].Codec)
	require.Equal(t, 11, dets[0].Offset)
}

func TestScanFindsGzipSignature(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte('x')
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	dets := Scan(buf.Bytes())
	require.NotEmpty(t, dets)
	require.Equal(t, CodecGzip, dets[0].Codec)
	require.Equal(t, 1, dets[0].Offset)
}

func TestDecompressZipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: "a.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := Decompress(CodecZip, buf.Bytes(), 0)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))
}

func TestDecompressGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	out, err := Decompress(CodecGzip, buf.Bytes(), 0)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))
}

func TestDecompressUnknownCodec(t *testing.T) {
	_, err := Decompress(Codec("rar"), []byte{}, 0)
	require.Error(t, err)
}

func TestDecompressZipNoEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())

	_, err := Decompress(CodecZip, buf.Bytes(), 0)
	require.Error(t, err)
}
