// Package settings loads and creates the one-line settings.json record that
// lives in every database directory (see SPEC_FULL.md §6.3). It is written
// once at database creation and is read-only thereafter, mirroring how
// gsfa/manifest.Manifest treats its own header: a magic/version check on
// open, and an immutable record once created.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/NPS-DEEP/hashdb-sub002/errs"
)

// CurrentVersion is the schema version written by this implementation.
// Opening a database whose settings_version differs is an InvariantViolation.
const CurrentVersion = 2

// FileName is the name of the settings file inside a database directory.
const FileName = "settings.json"

// Default tunables, chosen to match the original tool's defaults: 512-byte
// sectors (typical disk block size) and MD5 over 512-byte blocks.
const (
	DefaultSectorSize        = 512
	DefaultBlockSize         = 512
	DefaultMaxIDOffsetPairs  = 100000
	DefaultHashPrefixBits    = 24
	DefaultHashSuffixBytes   = 2
	DefaultBloomMHashSize    = 28
	DefaultBloomKHashFuncs   = 3
	DefaultMaxRecursionDepth = 7
)

// Settings is the persisted, immutable-after-create configuration record for
// one database directory.
type Settings struct {
	SettingsVersion  int    `json:"settings_version"`
	SectorSize       uint32 `json:"sector_size"`
	BlockSize        uint32 `json:"block_size"`
	MaxIDOffsetPairs uint64 `json:"max_id_offset_pairs"`
	HashPrefixBits   uint32 `json:"hash_prefix_bits"`
	HashSuffixBytes  uint32 `json:"hash_suffix_bytes"`
	BloomIsUsed      bool   `json:"bloom_is_used"`
	BloomMHashSize   uint32 `json:"bloom_M_hash_size"`
	BloomKHashFuncs  uint32 `json:"bloom_k_hash_functions"`
}

// Option configures a Settings record at creation time. Following the
// functional-options style used by store.OpenStore, defaults are applied
// first and each Option mutates the in-progress config.
type Option func(*Settings)

func WithSectorSize(n uint32) Option       { return func(s *Settings) { s.SectorSize = n } }
func WithBlockSize(n uint32) Option        { return func(s *Settings) { s.BlockSize = n } }
func WithMaxIDOffsetPairs(n uint64) Option { return func(s *Settings) { s.MaxIDOffsetPairs = n } }
func WithHashPrefixBits(n uint32) Option   { return func(s *Settings) { s.HashPrefixBits = n } }
func WithHashSuffixBytes(n uint32) Option  { return func(s *Settings) { s.HashSuffixBytes = n } }
func WithBloom(used bool, m, k uint32) Option {
	return func(s *Settings) {
		s.BloomIsUsed = used
		s.BloomMHashSize = m
		s.BloomKHashFuncs = k
	}
}

func defaults() Settings {
	return Settings{
		SettingsVersion:  CurrentVersion,
		SectorSize:       DefaultSectorSize,
		BlockSize:        DefaultBlockSize,
		MaxIDOffsetPairs: DefaultMaxIDOffsetPairs,
		HashPrefixBits:   DefaultHashPrefixBits,
		HashSuffixBytes:  DefaultHashSuffixBytes,
		BloomIsUsed:      true,
		BloomMHashSize:   DefaultBloomMHashSize,
		BloomKHashFuncs:  DefaultBloomKHashFuncs,
	}
}

// Create writes a new settings.json in dir, applying opts over the defaults.
// It fails if a settings file already exists, since settings are immutable
// once a database is created.
func Create(dir string, opts ...Option) (*Settings, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, errs.Invariantf("settings file already exists at %s", path)
	}
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	if err := write(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and validates the settings.json in dir.
func Load(dir string) (*Settings, error) {
	path := filepath.Join(dir, FileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errs.Invariantf("malformed settings file %s: %v", path, err)
	}
	if s.SettingsVersion != CurrentVersion {
		return nil, errs.Invariantf("settings version mismatch: got %d, want %d", s.SettingsVersion, CurrentVersion)
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func validate(s *Settings) error {
	if s.SectorSize == 0 || s.BlockSize == 0 {
		return errs.Invariantf("sector_size and block_size must be non-zero")
	}
	if s.BlockSize%s.SectorSize != 0 && s.SectorSize%s.BlockSize != 0 {
		// Not strictly required by the spec, but a block/sector size that
		// share no common alignment makes offset-alignment checks
		// meaningless; catch the misconfiguration early.
		return errs.Invariantf("block_size %d and sector_size %d must divide evenly", s.BlockSize, s.SectorSize)
	}
	if s.MaxIDOffsetPairs == 0 {
		return errs.Invariantf("max_id_offset_pairs must be non-zero")
	}
	if s.HashPrefixBits%8 != 0 {
		return errs.Invariantf("hash_prefix_bits must be a multiple of 8, got %d", s.HashPrefixBits)
	}
	return nil
}

func write(path string, s *Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// PrefixBytes returns the number of whole bytes the configured
// hash_prefix_bits occupies.
func (s *Settings) PrefixBytes() int {
	return int(s.HashPrefixBits / 8)
}
