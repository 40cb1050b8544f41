// Package chunks defines the storage contracts a Content Provider is
// built on (spec.md §6, "Blob storage"/"Alias storage" consumed
// interfaces) and a small content-addressed value type over raw bytes.
package chunks

import (
	"context"
	"io"

	"github.com/dolthub/corestore/hash"
)

// Chunk is a content-addressed byte payload. Its hash is computed lazily
// and cached, mirroring the teacher's chunks.Chunk/NewChunk shape.
type Chunk struct {
	data []byte
	h    hash.Hash
	done bool
}

// NewChunk wraps data, copying it so later mutation of the caller's slice
// cannot change the chunk's identity.
func NewChunk(data []byte) Chunk {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Chunk{data: cp}
}

// Data returns the chunk's bytes. Callers must not mutate the result.
func (c Chunk) Data() []byte {
	return c.data
}

// Hash returns the digest of the chunk's bytes, computing it on first
// call.
func (c *Chunk) Hash() hash.Hash {
	if !c.done {
		c.h = hash.Of(c.data)
		c.done = true
	}
	return c.h
}

// BlobStore is the key-value store keyed by content hash that backs
// HashRef and ManifestRef identifiers. Implementations must make Put
// idempotent: concurrent puts of the same hash are safe and converge to
// the same stored bytes (spec.md §5, "single-writer-consistency per
// key").
type BlobStore interface {
	// Put stores data under h. Idempotent.
	Put(ctx context.Context, h hash.Hash, data []byte) error

	// Get returns the bytes stored under h, or ErrNotFound.
	Get(ctx context.Context, h hash.Hash) ([]byte, error)

	// Exists reports whether h is present.
	Exists(ctx context.Context, h hash.Hash) (bool, error)

	// GetReader returns a streaming reader over the bytes stored under h,
	// along with their length, without necessarily reading anything
	// until the first Read call (spec.md §4.2 ordering note).
	GetReader(ctx context.Context, h hash.Hash) (r io.ReadCloser, size uint64, err error)

	// GetWriter returns a writer that, once Close'd, commits size bytes
	// under h.
	GetWriter(ctx context.Context, h hash.Hash, size uint64) (io.WriteCloser, error)
}

// AliasStore is the key-value store keyed by opaque alias bytes that
// backs Alias identifiers. Register enforces the "unique key, idempotent
// matching re-register, fail on mismatch" semantics of spec.md §3/§4.2
// directly, since that decision needs single-writer-consistent access to
// the existing value for key.
type AliasStore interface {
	// Register records key -> id. If key is already registered with an
	// equal id, this is a no-op success. If key is registered with a
	// different id, this returns ErrAliasAlreadyExists.
	Register(ctx context.Context, key []byte, id []byte) error

	// Resolve returns the identifier bytes registered under key, or
	// ErrNotFound.
	Resolve(ctx context.Context, key []byte) (id []byte, err error)

	// List returns a snapshot of all registered alias keys.
	List(ctx context.Context) ([][]byte, error)
}
