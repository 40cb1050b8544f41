// Package corestore wires the id/provider/treenode/index packages into
// a single Engine, and carries the tunable defaults spec.md §6 and the
// rest of SPEC_FULL.md's ambient stack describe.
package corestore

import (
	"fmt"
	"log"

	"github.com/dolthub/corestore/chunks"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/index"
	"github.com/dolthub/corestore/provider"
	"github.com/dolthub/corestore/storage"
	"github.com/dolthub/corestore/treenode"
)

// HashAlgorithm is a closed enum naming the digest primitive backing
// HashRef identifiers. corestore fixes exactly one choice (Blake3);
// the type exists so Config's shape matches what a caller would expect
// to tune, even though only one value is valid today (spec.md §3: "a
// fixed collision-resistant hash").
type HashAlgorithm int

// Blake3 is the only supported HashAlgorithm.
const Blake3 HashAlgorithm = iota

// Config bundles every tunable spec.md §6 names, plus the backing
// stores an Engine persists through. Blobs/Aliases default to
// in-memory stores when left nil.
type Config struct {
	ChunkSize           uint64
	SmallLimit          uint64
	HashAlgorithm       HashAlgorithm
	IndexKeyLength      int
	MinChildrenPerLayer int
	MaxChildrenPerLayer int
	MaxAliasDepth       int
	BlobCacheSize       int
	Logger              *log.Logger

	Blobs   chunks.BlobStore
	Aliases chunks.AliasStore
}

// DefaultConfig mirrors spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:           id.DefaultLimits.ChunkSize,
		SmallLimit:          id.DefaultLimits.SmallLimit,
		HashAlgorithm:       Blake3,
		IndexKeyLength:      32,
		MinChildrenPerLayer: index.DefaultMinChildrenPerLayer,
		MaxChildrenPerLayer: index.DefaultMaxChildrenPerLayer,
		MaxAliasDepth:       provider.DefaultMaxAliasDepth,
		BlobCacheSize:       1024,
	}
}

// Engine bundles a Content Provider and a Static Indexer configured
// from the same Config, the shape most callers of this module want.
type Engine struct {
	Provider *provider.Provider
	Indexer  *index.Indexer
}

// New constructs an Engine from cfg, defaulting zero ChunkSize,
// SmallLimit, MinChildrenPerLayer, MaxChildrenPerLayer, MaxAliasDepth and
// BlobCacheSize to DefaultConfig's values and unset stores to in-memory
// ones. A zero IndexKeyLength is rejected rather than defaulted.
func New(cfg Config) (*Engine, error) {
	if cfg.HashAlgorithm != Blake3 {
		return nil, fmt.Errorf("corestore: unsupported hash algorithm %v", cfg.HashAlgorithm)
	}
	if cfg.IndexKeyLength <= 0 {
		return nil, fmt.Errorf("corestore: IndexKeyLength must be positive")
	}
	// A Data identifier's wire encoding (id.Identifier.Encode) writes its
	// inline length as a single byte, so SmallLimit can never exceed 255;
	// spec.md §6 additionally fixes it to the 64-256 byte range.
	if cfg.SmallLimit != 0 && (cfg.SmallLimit < 64 || cfg.SmallLimit > 255) {
		return nil, fmt.Errorf("corestore: SmallLimit must be in the range 64-255, got %d", cfg.SmallLimit)
	}

	def := DefaultConfig()
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.SmallLimit == 0 {
		cfg.SmallLimit = def.SmallLimit
	}
	if cfg.MinChildrenPerLayer == 0 {
		cfg.MinChildrenPerLayer = def.MinChildrenPerLayer
	}
	if cfg.MaxChildrenPerLayer == 0 {
		cfg.MaxChildrenPerLayer = def.MaxChildrenPerLayer
	}
	if cfg.MaxAliasDepth == 0 {
		cfg.MaxAliasDepth = def.MaxAliasDepth
	}
	if cfg.BlobCacheSize == 0 {
		cfg.BlobCacheSize = def.BlobCacheSize
	}
	if cfg.Blobs == nil {
		cfg.Blobs = storage.NewMemoryBlobStore()
	}
	if cfg.Aliases == nil {
		cfg.Aliases = storage.NewMemoryAliasStore()
	}

	pcfg := provider.Config{
		Limits:        id.Limits{ChunkSize: cfg.ChunkSize, SmallLimit: cfg.SmallLimit},
		MaxAliasDepth: cfg.MaxAliasDepth,
		BlobCacheSize: cfg.BlobCacheSize,
		Logger:        cfg.Logger,
	}
	p := provider.New(cfg.Blobs, cfg.Aliases, pcfg)
	ix := index.New(treenode.NewStore(p), cfg.IndexKeyLength, cfg.MinChildrenPerLayer, cfg.MaxChildrenPerLayer)

	return &Engine{Provider: p, Indexer: ix}, nil
}
