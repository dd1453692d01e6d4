package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NPS-DEEP/hashdb-sub002/blockcalc"
	"github.com/NPS-DEEP/hashdb-sub002/db"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
)

// TestWhitelistOverridesLabel verifies that a block hash present in a
// configured whitelist database is ingested with label "w" regardless of
// what blockcalc.Label would otherwise compute for it.
func TestWhitelistOverridesLabel(t *testing.T) {
	d := openTestDB(t)
	im, sm := newManagers(d)

	blockSize := int(d.Settings.BlockSize)
	content := make([]byte, blockSize)
	for i := range content {
		content[i] = byte(i % 251)
	}
	wantHash := blockcalc.BlockHash(content, 0, blockSize)

	wlDir := filepath.Join(t.TempDir(), "whitelist")
	wd, err := db.Create(wlDir)
	require.NoError(t, err)
	wim, _ := newManagers(wd)
	require.NoError(t, wim.InsertHash(wantHash[:], []byte("whitelisted-file"), 0, 0, ""))
	require.NoError(t, wd.Close())

	wd2, err := db.Open(wlDir)
	require.NoError(t, err)
	defer wd2.Close()
	wl := scan.New(wd2.HashStore, wd2.SourceStore, wd2.SourceNameStore, wd2.FileHashIndex, wd2.BloomFilter,
		wd2.Settings.HashPrefixBits, wd2.Settings.HashSuffixBytes)

	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	tracker := NewTracker(im)
	cfg := DefaultConfig(d.Settings, "repo")
	cfg.RecursionEnabled = false
	cfg.Whitelist = wl
	pipeline := NewPipeline(im, tracker, cfg)
	require.NoError(t, pipeline.IngestFile(context.Background(), path))

	res, found, err := sm.FindHash(wantHash[:])
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, res.Tuples, 1)
	require.Equal(t, "w", string(res.Tuples[0].Label))
}
