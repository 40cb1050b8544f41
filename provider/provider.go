// Package provider implements the Content Provider (spec.md C2): blob
// storage, alias resolution, chunked reads, reference counting, and
// transactional overlay composition with parent fallback.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dolthub/corestore/chunks"
	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/hash"
	"github.com/dolthub/corestore/id"
)

// DefaultMaxAliasDepth bounds alias-chain and nested-reference resolution
// (spec.md §9: cycles in the alias graph are possible via user error and
// must be bounded rather than followed forever).
const DefaultMaxAliasDepth = 32

// Config bundles the tunables a Provider needs beyond its backing stores.
type Config struct {
	Limits        id.Limits
	MaxAliasDepth int
	// BlobCacheSize bounds the number of distinct blobs cached in memory
	// by hash (0 disables the cache).
	BlobCacheSize int
	Logger        *log.Logger
}

// DefaultConfig mirrors spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		Limits:        id.DefaultLimits,
		MaxAliasDepth: DefaultMaxAliasDepth,
		BlobCacheSize: 1024,
	}
}

// Provider is spec.md C2's Content Provider: a blob/alias store pair, an
// optional parent (forming a transaction stack), and a per-Provider
// reference counter guarded by a lock (spec.md §5 "Shared state").
type Provider struct {
	blobs   chunks.BlobStore
	aliases chunks.AliasStore
	parent  *Provider

	cfg   Config
	cache *lru.Cache[hash.Hash, []byte]

	mu   sync.Mutex
	refs map[string]int64
}

// New constructs a root Provider (no parent) over the given backing
// stores.
func New(blobs chunks.BlobStore, aliases chunks.AliasStore, cfg Config) *Provider {
	if cfg.MaxAliasDepth <= 0 {
		cfg.MaxAliasDepth = DefaultMaxAliasDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	var cache *lru.Cache[hash.Hash, []byte]
	if cfg.BlobCacheSize > 0 {
		cache, _ = lru.New[hash.Hash, []byte](cfg.BlobCacheSize)
	}
	return &Provider{
		blobs:   blobs,
		aliases: aliases,
		cfg:     cfg,
		cache:   cache,
		refs:    make(map[string]int64),
	}
}

func refKey(theID id.Identifier) string {
	return string(theID.Encode())
}

// Parent returns p's parent provider, or nil for a root Provider.
func (p *Provider) Parent() *Provider {
	return p.parent
}

// Limits returns the inline/hash/chunk thresholds this Provider computes
// identifiers with.
func (p *Provider) Limits() id.Limits {
	return p.cfg.Limits
}

// -- reference counting (spec.md §3 "Reference counter") --------------

func (p *Provider) incRef(theID id.Identifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[refKey(theID)]++
}

func (p *Provider) decRef(theID id.Identifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[refKey(theID)]--
}

// Unwrite decrements the local refcount for theID. It does not delete any
// storage (spec.md §4.2).
func (p *Provider) Unwrite(theID id.Identifier) {
	p.decRef(theID)
}

// Referenced returns a snapshot of identifiers with a positive local
// refcount.
func (p *Provider) Referenced() []id.Identifier {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]id.Identifier, 0, len(p.refs))
	for encoded, n := range p.refs {
		if n <= 0 {
			continue
		}
		decoded, _, err := id.Decode([]byte(encoded))
		if err != nil {
			// refs keys are only ever produced by refKey, so this
			// cannot happen outside of memory corruption.
			panic(fmt.Sprintf("provider: corrupt refcount key: %v", err))
		}
		out = append(out, decoded)
	}
	return out
}

// -- blob store access with parent fallback and cache ------------------

func (p *Provider) blobExists(ctx context.Context, h hash.Hash) (bool, error) {
	ok, err := p.blobs.Exists(ctx, h)
	if err != nil {
		return false, fmt.Errorf("provider: blob exists: %w", err)
	}
	if ok {
		return true, nil
	}
	if p.parent != nil {
		return p.parent.blobExists(ctx, h)
	}
	return false, nil
}

func (p *Provider) getBlob(ctx context.Context, h hash.Hash) ([]byte, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(h); ok {
			return v, nil
		}
	}
	data, err := p.blobs.Get(ctx, h)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) && p.parent != nil {
			return p.parent.getBlob(ctx, h)
		}
		return nil, err
	}
	if p.cache != nil {
		p.cache.Add(h, data)
	}
	return data, nil
}

// -- alias store access with parent fallback ---------------------------

// ResolveAlias resolves a single alias key to the Identifier registered
// under it, falling through to the parent on a local miss (spec.md
// §4.2). It does not follow alias chains; callers that need the final
// non-Alias identifier use Read/Exists/ReadSize, which bound chain
// traversal by MaxAliasDepth.
func (p *Provider) ResolveAlias(ctx context.Context, key []byte) (id.Identifier, error) {
	encoded, err := p.aliases.Resolve(ctx, key)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) && p.parent != nil {
			return p.parent.ResolveAlias(ctx, key)
		}
		return id.Identifier{}, err
	}
	decoded, _, err := id.Decode(encoded)
	if err != nil {
		return id.Identifier{}, fmt.Errorf("provider: resolve alias: %w", err)
	}
	return decoded, nil
}

// RegisterAlias records key -> theID (spec.md §4.2 register_alias). It is
// idempotent when (key, theID) already matches and fails
// ErrAliasAlreadyExists on mismatch; that decision is delegated to the
// AliasStore, which alone can make it atomically against its own storage.
func (p *Provider) RegisterAlias(ctx context.Context, key []byte, theID id.Identifier) (id.Identifier, error) {
	if err := p.aliases.Register(ctx, key, theID.Encode()); err != nil {
		return id.Identifier{}, err
	}
	aliasID := id.NewAlias(key)
	p.incRef(aliasID)
	return aliasID, nil
}

// -- top-level operations (spec.md §4.2) -------------------------------

// Exists recursively resolves aliases and manifests; Data is trivially
// true. A local miss on a parent-backed Provider falls through to the
// parent.
func (p *Provider) Exists(ctx context.Context, theID id.Identifier) (bool, error) {
	return p.existsDepth(ctx, theID, 0)
}

func (p *Provider) existsDepth(ctx context.Context, theID id.Identifier, depth int) (bool, error) {
	switch theID.Kind() {
	case id.KindData:
		return true, nil
	case id.KindHashRef:
		h, _, _ := theID.AsHashRef()
		return p.blobExists(ctx, h)
	case id.KindManifestRef:
		_, inner, _ := theID.AsManifestRef()
		return p.existsDepth(ctx, inner, depth)
	case id.KindAlias:
		if depth >= p.cfg.MaxAliasDepth {
			return false, errs.ErrCorruptedTree
		}
		key, _ := theID.AsAlias()
		resolved, err := p.ResolveAlias(ctx, key)
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return p.existsDepth(ctx, resolved, depth+1)
	default:
		return false, fmt.Errorf("provider: exists: unknown identifier kind %v", theID.Kind())
	}
}

// Read returns the full logical payload named by theID.
func (p *Provider) Read(ctx context.Context, theID id.Identifier) ([]byte, error) {
	return p.readDepth(ctx, theID, 0)
}

func (p *Provider) readDepth(ctx context.Context, theID id.Identifier, depth int) ([]byte, error) {
	switch theID.Kind() {
	case id.KindData:
		data, _ := theID.AsData()
		return data, nil
	case id.KindHashRef:
		h, _, _ := theID.AsHashRef()
		data, err := p.getBlob(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("provider: read: %w", err)
		}
		return data, nil
	case id.KindManifestRef:
		return p.readManifest(ctx, theID, depth)
	case id.KindAlias:
		if depth >= p.cfg.MaxAliasDepth {
			return nil, errs.ErrCorruptedTree
		}
		key, _ := theID.AsAlias()
		resolved, err := p.ResolveAlias(ctx, key)
		if err != nil {
			return nil, err
		}
		return p.readDepth(ctx, resolved, depth+1)
	default:
		return nil, fmt.Errorf("provider: read: unknown identifier kind %v", theID.Kind())
	}
}

func (p *Provider) readManifest(ctx context.Context, theID id.Identifier, depth int) ([]byte, error) {
	total, manifestBlobID, _ := theID.AsManifestRef()
	manifestBytes, err := p.readDepth(ctx, manifestBlobID, depth)
	if err != nil {
		return nil, fmt.Errorf("provider: read manifest: %w", err)
	}
	ids, err := id.DecodeManifest(manifestBytes)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, total)
	for _, childID := range ids {
		childBytes, err := p.readDepth(ctx, childID, depth)
		if err != nil {
			return nil, fmt.Errorf("provider: read manifest chunk: %w", err)
		}
		out = append(out, childBytes...)
	}
	if uint64(len(out)) != total {
		return nil, fmt.Errorf("provider: read manifest: %w: expected %d bytes, got %d", errs.ErrCorruptedTree, total, len(out))
	}
	return out, nil
}

// ReadSize returns the payload size named by theID without reading blob
// bytes for Data/HashRef/ManifestRef; Alias requires resolution.
func (p *Provider) ReadSize(ctx context.Context, theID id.Identifier) (uint64, error) {
	return p.readSizeDepth(ctx, theID, 0)
}

func (p *Provider) readSizeDepth(ctx context.Context, theID id.Identifier, depth int) (uint64, error) {
	if size, ok := id.ReadSize(theID); ok {
		return size, nil
	}
	if depth >= p.cfg.MaxAliasDepth {
		return 0, errs.ErrCorruptedTree
	}
	key, _ := theID.AsAlias()
	resolved, err := p.ResolveAlias(ctx, key)
	if err != nil {
		return 0, err
	}
	return p.readSizeDepth(ctx, resolved, depth+1)
}

// -- writes -------------------------------------------------------------

// Write applies ComputeID's inline/hash/chunk policy to data, persists
// whatever storage that policy requires, and increments the local
// refcount for the returned identifier (spec.md §4.2).
func (p *Provider) Write(ctx context.Context, data []byte) (id.Identifier, error) {
	theID, err := p.storeBytes(ctx, data)
	if err != nil {
		return id.Identifier{}, err
	}
	p.incRef(theID)
	return theID, nil
}

// storeBytes computes data's identifier and persists whatever backing
// storage that identifier's variant requires, without touching
// refcounts. It recurses for ManifestRef exactly the way ComputeID does,
// so a pathologically huge manifest encoding is itself chunked again.
func (p *Provider) storeBytes(ctx context.Context, data []byte) (id.Identifier, error) {
	theID := id.ComputeID(data, p.cfg.Limits)
	switch theID.Kind() {
	case id.KindData:
		// inlined; nothing to persist.
	case id.KindHashRef:
		h, _, _ := theID.AsHashRef()
		if err := p.blobs.Put(ctx, h, data); err != nil {
			return id.Identifier{}, fmt.Errorf("provider: write blob: %w", err)
		}
	case id.KindManifestRef:
		limits := p.cfg.Limits
		var childIDs []id.Identifier
		for off := uint64(0); off < uint64(len(data)); off += limits.ChunkSize {
			end := off + limits.ChunkSize
			if end > uint64(len(data)) {
				end = uint64(len(data))
			}
			childID, err := p.storeBytes(ctx, data[off:end])
			if err != nil {
				return id.Identifier{}, err
			}
			childIDs = append(childIDs, childID)
		}
		encoded := id.EncodeManifest(childIDs)
		if _, err := p.storeBytes(ctx, encoded); err != nil {
			return id.Identifier{}, err
		}
	default:
		return id.Identifier{}, fmt.Errorf("provider: write: unexpected computed kind %v", theID.Kind())
	}
	return theID, nil
}

// WriteAlias writes data, then registers key -> the resulting identifier.
func (p *Provider) WriteAlias(ctx context.Context, key []byte, data []byte) (id.Identifier, error) {
	theID, err := p.Write(ctx, data)
	if err != nil {
		return id.Identifier{}, err
	}
	if _, err := p.RegisterAlias(ctx, key, theID); err != nil {
		return id.Identifier{}, err
	}
	return theID, nil
}
