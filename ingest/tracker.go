package ingest

import "sync"

// sourceState tracks per-file progress during one ingest run, the Go analog
// of downloader.reorder's receivedCount/totalChunks completion counting,
// generalized from "chunks of one download" to "buffer-jobs of one file".
type sourceState struct {
	fileBinaryHash []byte
	filesize       uint64
	fileType       string
	partsTotal     int
	partsDone      int

	zeroCount         uint64
	nonprobativeCount uint64

	hashIngestDisabled bool // true when this file hash was already seen (dedup)
	flushed            bool
}

// Tracker is the per-run shared state tracking which file hashes have been
// observed, partial aggregate counts, and parts_done/parts_total for
// progress reporting and for knowing when to flush the aggregate Source
// record exactly once, per spec §4.10.
type Tracker struct {
	mu      sync.Mutex
	sources map[string]*sourceState // keyed by string(fileBinaryHash)
	im      *ImportManager

	BytesProcessed uint64
}

// NewTracker builds a Tracker that flushes aggregate source records through im.
func NewTracker(im *ImportManager) *Tracker {
	return &Tracker{sources: make(map[string]*sourceState), im: im}
}

// AddSource registers filesize/fileType and parts_total for fileHash,
// returning whether block-hash ingest for this file should be disabled
// because the hash was already seen (spec §4.7 step 3 deduplication).
func (t *Tracker) AddSource(fileHash []byte, filesize uint64, fileType string, partsTotal int) (disableHashIngest bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(fileHash)
	if _, exists := t.sources[key]; exists {
		return true
	}
	t.sources[key] = &sourceState{
		fileBinaryHash: fileHash,
		filesize:       filesize,
		fileType:       fileType,
		partsTotal:     partsTotal,
	}
	return false
}

// TrackSource accumulates partial zero/nonprobative counts for one
// completed buffer job and, once parts_done reaches parts_total, flushes
// the aggregate Source record exactly once.
func (t *Tracker) TrackSource(fileHash []byte, zeroCount, nonprobativeCount uint64) error {
	t.mu.Lock()
	st, ok := t.sources[string(fileHash)]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	st.zeroCount += zeroCount
	st.nonprobativeCount += nonprobativeCount
	st.partsDone++
	done := st.partsDone >= st.partsTotal && !st.flushed
	if done {
		st.flushed = true
	}
	filesize, fileType, z, np := st.filesize, st.fileType, st.zeroCount, st.nonprobativeCount
	t.mu.Unlock()

	if !done {
		return nil
	}
	return t.im.InsertSourceData(fileHash, filesize, fileType, z, np)
}
