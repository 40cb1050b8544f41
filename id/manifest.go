package id

import (
	"encoding/binary"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/hash"
)

// ManifestKind discriminates manifest encodings. Linear is the only kind
// defined today (spec.md §6).
type ManifestKind byte

// Linear is an ordered, contiguous list of chunk identifiers.
const Linear ManifestKind = 0x01

// EncodeManifest returns the canonical wire encoding of a linear manifest
// over ids (spec.md §6: discriminant, varint count, concatenated
// identifier encodings).
func EncodeManifest(ids []Identifier) []byte {
	countBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(countBuf, uint64(len(ids)))

	buf := make([]byte, 0, 1+n)
	buf = append(buf, byte(Linear))
	buf = append(buf, countBuf[:n]...)
	for _, childID := range ids {
		buf = append(buf, childID.Encode()...)
	}
	return buf
}

// DecodeManifest parses a linear manifest's chunk identifiers from b.
func DecodeManifest(b []byte) ([]Identifier, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("id: decode manifest: %w: empty input", errs.ErrInvalidManifest)
	}
	if ManifestKind(b[0]) != Linear {
		return nil, fmt.Errorf("id: decode manifest: %w: unknown manifest kind %d", errs.ErrInvalidManifest, b[0])
	}
	count, n := binary.Uvarint(b[1:])
	if n <= 0 {
		return nil, fmt.Errorf("id: decode manifest: %w: bad count varint", errs.ErrInvalidManifest)
	}
	off := 1 + n
	ids := make([]Identifier, 0, count)
	for i := uint64(0); i < count; i++ {
		childID, consumed, err := Decode(b[off:])
		if err != nil {
			return nil, fmt.Errorf("id: decode manifest: entry %d: %w", i, err)
		}
		ids = append(ids, childID)
		off += consumed
	}
	return ids, nil
}

// Limits bundles the two size thresholds that drive ComputeID's policy
// (spec.md §4.1/§6).
type Limits struct {
	// ChunkSize is the maximum size of a leaf chunk; payloads larger
	// than this are split into a manifest of chunks of at most this
	// size.
	ChunkSize uint64
	// SmallLimit is the maximum size inlined directly into a Data
	// identifier. Must be <= 255 (a Data identifier's length prefix is a
	// single byte, spec.md §6).
	SmallLimit uint64
}

// DefaultLimits mirror spec.md §6's stated defaults (8 MiB chunks, a
// small-limit within the 64-256-byte range; 255 is the largest value a
// single-byte length prefix can carry).
var DefaultLimits = Limits{
	ChunkSize:  8 * 1024 * 1024,
	SmallLimit: 255,
}

// ComputeID implements spec.md §4.1's pure, deterministic policy: inline
// small payloads, hash medium ones, and chunk+manifest large ones.
// ComputeID never touches storage; chunking and manifest assembly are
// both computed purely over the in-memory bytes.
func ComputeID(data []byte, limits Limits) Identifier {
	n := uint64(len(data))
	switch {
	case n > limits.ChunkSize:
		return computeManifestID(data, limits)
	case n > limits.SmallLimit:
		return NewHashRef(hash.Of(data), n)
	default:
		return NewData(data)
	}
}

func computeManifestID(data []byte, limits Limits) Identifier {
	total := uint64(len(data))
	var childIDs []Identifier
	for off := uint64(0); off < total; off += limits.ChunkSize {
		end := off + limits.ChunkSize
		if end > total {
			end = total
		}
		childIDs = append(childIDs, ComputeID(data[off:end], limits))
	}
	encoded := EncodeManifest(childIDs)
	// The manifest blob itself is subject to the same inline/hash policy
	// as any other payload (it is just bytes), recursing at most once in
	// practice since manifests are rarely themselves chunk-sized.
	manifestID := ComputeID(encoded, limits)
	return NewManifestRef(total, manifestID)
}

// ReadSize returns the payload size named by id without resolving an
// Alias (ok=false signals the caller must resolve the alias and recurse,
// per spec.md §4.1).
func ReadSize(id Identifier) (size uint64, ok bool) {
	switch id.Kind() {
	case KindData:
		data, _ := id.AsData()
		return uint64(len(data)), true
	case KindHashRef:
		_, size, _ := id.AsHashRef()
		return size, true
	case KindManifestRef:
		size, _, _ := id.AsManifestRef()
		return size, true
	default:
		return 0, false
	}
}
