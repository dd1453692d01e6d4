package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NPS-DEEP/hashdb-sub002/settings"
)

func TestCreateOpenClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db1")
	d, err := Create(dir)
	require.NoError(t, err)
	require.NotNil(t, d.BloomBuilder)
	require.NoError(t, d.Close())

	d2, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, settings.CurrentVersion, d2.Settings.SettingsVersion)
	require.NoError(t, d2.Close())
}

func TestReopenedBloomFilterDoesNotDropEarlierBits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db1")
	d, err := Create(dir)
	require.NoError(t, err)

	h1 := make([]byte, 16)
	h1[0] = 1
	d.BloomBuilder.Add(h1)
	require.NoError(t, d.Close())

	// Second session: add a different hash and close again. The first
	// session's bits must survive this reseal.
	d2, err := Open(dir)
	require.NoError(t, err)
	h2 := make([]byte, 16)
	h2[0] = 2
	d2.BloomBuilder.Add(h2)
	require.NoError(t, d2.Close())

	d3, err := Open(dir)
	require.NoError(t, err)
	defer d3.Close()
	require.True(t, d3.BloomFilter.MaybeContains(h1))
	require.True(t, d3.BloomFilter.MaybeContains(h2))
}

func TestLogEventStampsRunID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db1")
	d, err := Create(dir)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.LogEvent("test event", map[string]any{"k": "v"}))
	require.NotEqual(t, "", d.RunID.String())
}
