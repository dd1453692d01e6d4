package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, WithSectorSize(1024), WithBlockSize(1024))
	require.NoError(t, err)
	require.Equal(t, uint32(1024), s.SectorSize)

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(dir)
	require.NoError(t, err)

	_, err = Create(dir)
	require.Error(t, err)
}

func TestCreateRejectsUnalignedHashPrefixBits(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(dir, WithHashPrefixBits(5))
	require.Error(t, err)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, write(path, &Settings{SettingsVersion: CurrentVersion + 1, SectorSize: 512, BlockSize: 512, MaxIDOffsetPairs: 1, HashPrefixBits: 8}))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestPrefixBytes(t *testing.T) {
	s := &Settings{HashPrefixBits: 24}
	require.Equal(t, 3, s.PrefixBytes())
}
