package ingest

import (
	"context"
	"crypto/md5"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/NPS-DEEP/hashdb-sub002/blockcalc"
	"github.com/NPS-DEEP/hashdb-sub002/jobqueue"
	"github.com/NPS-DEEP/hashdb-sub002/media"
	"github.com/NPS-DEEP/hashdb-sub002/scan"
	"github.com/NPS-DEEP/hashdb-sub002/settings"
	"github.com/NPS-DEEP/hashdb-sub002/uncompress"
)

var pipelineLog = logging.Logger("hashdb/ingest/pipeline")

// Buffer sizing per spec §4.7: data-carrying portion D, tail overlap T,
// total buffer B = D + T.
const (
	dataSize    = 1 << 24 // D, 16 MiB
	overlapSize = 1 << 20 // T, 1 MiB
)

// Config configures one ingest run.
type Config struct {
	Workers           int
	RepositoryName    string
	RecursionEnabled  bool
	MaxRecursionDepth int // spec §4.7, default 7
	StepSize          uint64
	BlockSize         uint64
	ComputeEntropy    bool
	ComputeLabel      bool

	// Whitelist, if non-nil, is consulted for every block hash before
	// insert: a hit overrides the computed label to "w", per spec §4.7
	// ("if whitelist database is configured, scan H there first; if
	// present, set label to 'w'").
	Whitelist *scan.Manager

	// Progress, if non-nil, is called after each buffer job with the number
	// of bytes just processed, for driving an external progress bar.
	Progress func(bytesDone uint64)
}

// DefaultConfig returns a Config seeded from a database's Settings.
func DefaultConfig(s *settings.Settings, repo string) Config {
	return Config{
		Workers:           4,
		RepositoryName:    repo,
		RecursionEnabled:  true,
		MaxRecursionDepth: settings.DefaultMaxRecursionDepth,
		StepSize:          uint64(s.SectorSize),
		BlockSize:         uint64(s.BlockSize),
		ComputeEntropy:    true,
		ComputeLabel:      true,
	}
}

// Pipeline drives the ingest data flow: filesystem walker -> media reader ->
// overlapping buffers -> job queue -> worker (hash/entropy/label + optional
// recursive uncompress) -> import manager, per spec §4.7.
type Pipeline struct {
	im      *ImportManager
	tracker *Tracker
	cfg     Config
	entropy *blockcalc.EntropyTable
}

// NewPipeline builds a Pipeline over im, flushing aggregate source records
// through tracker.
func NewPipeline(im *ImportManager, tracker *Tracker, cfg Config) *Pipeline {
	return &Pipeline{
		im:      im,
		tracker: tracker,
		cfg:     cfg,
		entropy: blockcalc.NewEntropyTable(int(cfg.BlockSize)),
	}
}

var splitMemberSuffix = regexp.MustCompile(`\.(00[1-9]|0[1-9]\d|[1-9]\d\d)$`)
var ewfMemberSuffix = regexp.MustCompile(`\.[eE](0[2-9]|[1-9]\d)$`)

// isSecondarySegment reports whether path is a non-first segment of a
// split-file or EWF sequence, which must not be walked as its own source
// since media.Open on the first segment already covers the whole span.
func isSecondarySegment(path string) bool {
	lower := strings.ToLower(path)
	return splitMemberSuffix.MatchString(lower) || ewfMemberSuffix.MatchString(lower)
}

// IngestTree walks root, ingesting every regular file as a source, per the
// "filesystem walker" stage of spec §4.7's data flow.
func (p *Pipeline) IngestTree(ctx context.Context, root string) error {
	queue := jobqueue.New(ctx, p.cfg.Workers)
	var walkErr error
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			walkErr = err
			return err
		}
		if d.IsDir() || isSecondarySegment(path) {
			return nil
		}
		filename := filepath.Base(path)
		queue.Submit(func(ctx context.Context, q *jobqueue.Queue) error {
			return p.ingestFile(ctx, q, path, filename, filename, 0)
		})
		return nil
	})
	if err := queue.Close(); err != nil {
		return err
	}
	return walkErr
}

// IngestFile ingests a single file as a source.
func (p *Pipeline) IngestFile(ctx context.Context, path string) error {
	queue := jobqueue.New(ctx, p.cfg.Workers)
	filename := filepath.Base(path)
	queue.Submit(func(ctx context.Context, q *jobqueue.Queue) error {
		return p.ingestFile(ctx, q, path, filename, filename, 0)
	})
	return queue.Close()
}

// ingestFile implements "per file" step 1-4 of spec §4.7: whole-file hash,
// source-name registration, tracker registration, then D-byte chunk
// submission. It runs as a queue job inside a worker and submits its buffer
// jobs to the same queue. parentName is the recursive
// source-name prefix (spec §4.7's "<parent>-<parent_offset>-<codec>"),
// equal to filename for top-level files.
func (p *Pipeline) ingestFile(ctx context.Context, q *jobqueue.Queue, path, filename, parentName string, depth int) error {
	rd, err := media.Open(path)
	if err != nil {
		return fmt.Errorf("ingest: open %s: %w", path, err)
	}

	fileHash, err := wholeFileHash(rd)
	if err != nil {
		rd.Close()
		return err
	}

	if _, err := p.im.InsertSourceName(fileHash[:], p.cfg.RepositoryName, filename); err != nil {
		rd.Close()
		return err
	}

	size := rd.Size()
	partsTotal := int((size + dataSize - 1) / dataSize)
	if partsTotal == 0 {
		partsTotal = 1
	}
	disableHashIngest := p.tracker.AddSource(fileHash[:], size, "", partsTotal)

	chunks := chunksOf(size)
	tr := newTrackedReader(rd, len(chunks))
	for _, chunk := range chunks {
		chunk := chunk
		q.Submit(func(ctx context.Context, q *jobqueue.Queue) error {
			return p.processBuffer(ctx, q, tr, fileHash[:], chunk, disableHashIngest, parentName, depth)
		})
	}
	return nil
}

// trackedReader closes the underlying media.Reader once every buffer job
// reading from it has completed, since ingestFile submits those reads as
// concurrent jobs and returns long before they finish — ownership of the
// reader transfers from the caller to the last worker to touch it.
type trackedReader struct {
	media.Reader
	remaining int64
}

func newTrackedReader(rd media.Reader, jobs int) *trackedReader {
	if jobs < 1 {
		jobs = 1
	}
	return &trackedReader{Reader: rd, remaining: int64(jobs)}
}

func (t *trackedReader) release() {
	if atomic.AddInt64(&t.remaining, -1) == 0 {
		t.Reader.Close()
	}
}

func wholeFileHash(rd media.Reader) ([16]byte, error) {
	h := md5.New()
	buf := make([]byte, 1<<20)
	var offset uint64
	size := rd.Size()
	for offset < size {
		n, err := rd.ReadAt(offset, buf)
		if n > 0 {
			h.Write(buf[:n])
			offset += uint64(n)
		}
		if err != nil {
			return [16]byte{}, err
		}
		if n == 0 {
			break
		}
	}
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// bufferChunk is one D-byte read window plus its T-byte overlap into the
// next chunk, per spec §4.7.
type bufferChunk struct {
	fileOffset uint64 // offset of this chunk's data-carrying portion in the file
	dataLen    uint64 // <= dataSize, shorter for the last chunk
	readLen    uint64 // dataLen + overlap actually available
}

func chunksOf(size uint64) []bufferChunk {
	var chunks []bufferChunk
	for offset := uint64(0); offset < size || (size == 0 && offset == 0); offset += dataSize {
		dataLen := uint64(dataSize)
		if offset+dataLen > size {
			dataLen = size - offset
		}
		readLen := dataLen + overlapSize
		if offset+readLen > size {
			readLen = size - offset
		}
		chunks = append(chunks, bufferChunk{fileOffset: offset, dataLen: dataLen, readLen: readLen})
		if size == 0 {
			break
		}
	}
	return chunks
}

// processBuffer is the "per buffer job (worker)" stage of spec §4.7: block
// loop over [0, dataLen) stepping by StepSize, hash/entropy/label,
// tracker accumulation, and recursive uncompression scanning.
func (p *Pipeline) processBuffer(ctx context.Context, q *jobqueue.Queue, rd *trackedReader, fileHash []byte, chunk bufferChunk, disableHashIngest bool, parentName string, depth int) error {
	defer rd.release()
	buf := make([]byte, chunk.readLen)
	n, err := rd.ReadAt(chunk.fileOffset, buf)
	if err != nil {
		return err
	}
	buf = buf[:n]

	var zeroCount, nonprobativeCount uint64
	blockSize := int(p.cfg.BlockSize)
	for i := uint64(0); i < chunk.dataLen; i += p.cfg.StepSize {
		if blockcalc.IsAllEqual(buf, int(i), blockSize) {
			zeroCount++
			continue
		}
		h := blockcalc.BlockHash(buf, int(i), blockSize)

		var entropy uint64
		if p.cfg.ComputeEntropy {
			entropy = blockcalc.Entropy(p.entropy, buf, int(i), blockSize)
		}
		var label string
		if p.cfg.ComputeLabel {
			label = blockcalc.Label(buf, int(i), blockSize)
		}
		if p.cfg.Whitelist != nil {
			if _, found, err := p.cfg.Whitelist.FindHash(h[:]); err != nil {
				return err
			} else if found {
				label = "w"
			}
		}
		if label != "" {
			nonprobativeCount++
		}

		if !disableHashIngest {
			if err := p.im.InsertHash(h[:], fileHash, chunk.fileOffset+i, entropy, label); err != nil {
				return err
			}
		}
	}

	if err := p.tracker.TrackSource(fileHash, zeroCount, nonprobativeCount); err != nil {
		return err
	}
	if p.cfg.Progress != nil {
		p.cfg.Progress(min64(chunk.dataLen, uint64(n)))
	}

	if p.cfg.RecursionEnabled && depth < p.cfg.MaxRecursionDepth {
		return p.recurse(ctx, q, buf[:min64(chunk.dataLen, uint64(len(buf)))], chunk.fileOffset, parentName, depth)
	}
	return nil
}

// recurse scans the buffer for zip/gzip signatures and submits a new
// ingest job for each detected container, per spec §4.7's recursion step.
// The child source name is "<parent>-<parent_offset>-<codec>", naming the
// containing source so nested provenance stays traceable (spec §4.7, S6).
func (p *Pipeline) recurse(ctx context.Context, q *jobqueue.Queue, buf []byte, parentOffset uint64, parentName string, depth int) error {
	for _, det := range uncompress.Scan(buf) {
		det := det
		decoded, err := uncompress.Decompress(det.Codec, buf, det.Offset)
		if err != nil {
			// Not a real container at this offset (signature collision);
			// skip, matching "attempt to decompress" being best-effort.
			continue
		}
		childName := fmt.Sprintf("%s-%d-%s", parentName, parentOffset+uint64(det.Offset), det.Codec)
		q.Submit(func(ctx context.Context, q *jobqueue.Queue) error {
			return p.ingestDecoded(ctx, q, decoded, childName, depth+1)
		})
	}
	return nil
}

// ingestDecoded ingests an in-memory decompressed buffer as a recursive
// source, per spec §4.7: "file-hash is computed over the decompressed
// bytes", duplicate decompressed sources suppress block-hash re-ingest but
// still record the new name. name is already the full
// "<parent>-<parent_offset>-<codec>" chain and is also used as the parent
// prefix for any further nested recursion.
func (p *Pipeline) ingestDecoded(ctx context.Context, q *jobqueue.Queue, decoded []byte, name string, depth int) error {
	rd := media.NewMemoryReader(decoded)

	fileHash, err := wholeFileHash(rd)
	if err != nil {
		rd.Close()
		return err
	}
	if _, err := p.im.InsertSourceName(fileHash[:], p.cfg.RepositoryName, name); err != nil {
		rd.Close()
		return err
	}

	size := rd.Size()
	partsTotal := int((size + dataSize - 1) / dataSize)
	if partsTotal == 0 {
		partsTotal = 1
	}
	disableHashIngest := p.tracker.AddSource(fileHash[:], size, "", partsTotal)

	chunks := chunksOf(size)
	tr := newTrackedReader(rd, len(chunks))
	for _, chunk := range chunks {
		chunk := chunk
		q.Submit(func(ctx context.Context, q *jobqueue.Queue) error {
			return p.processBuffer(ctx, q, tr, fileHash[:], chunk, disableHashIngest, name, depth)
		})
	}
	return nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
