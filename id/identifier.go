// Package id implements Identifier and Manifest (spec.md C1): the
// deterministic, canonically-encoded name for a byte payload, plus the
// inline/hash/chunk policy that decides which variant a given payload
// gets.
package id

import (
	"encoding/binary"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/hash"
)

// Kind discriminates the closed set of Identifier variants (spec.md §3).
type Kind byte

const (
	// KindData identifies an inlined-bytes identifier.
	KindData Kind = 0x01
	// KindHashRef identifies a hash+size identifier.
	KindHashRef Kind = 0x02
	// KindManifestRef identifies a chunk-manifest identifier.
	KindManifestRef Kind = 0x03
	// KindAlias identifies an opaque alias-key identifier.
	KindAlias Kind = 0x04
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "Data"
	case KindHashRef:
		return "HashRef"
	case KindManifestRef:
		return "ManifestRef"
	case KindAlias:
		return "Alias"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Identifier is the tagged sum of spec.md §3: Data, HashRef, ManifestRef,
// or Alias. The zero value is not a valid Identifier; construct one with
// the New* functions.
type Identifier struct {
	kind Kind

	// KindData
	inline []byte

	// KindHashRef: digest + byte length of the blob.
	h    hash.Hash
	size uint64

	// KindManifestRef: total reconstructed payload size, and the
	// identifier of the blob that decodes as the chunk manifest.
	inner *Identifier

	// KindAlias
	key []byte
}

// NewData builds a Data identifier inlining a copy of data.
// Callers must ensure len(data) fits the configured SmallLimit; this
// constructor does not itself enforce that bound since it is also used
// to decode wire bytes written under a possibly different historical
// limit.
func NewData(data []byte) Identifier {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Identifier{kind: KindData, inline: cp}
}

// NewHashRef builds a HashRef identifier.
func NewHashRef(h hash.Hash, size uint64) Identifier {
	return Identifier{kind: KindHashRef, h: h, size: size}
}

// NewManifestRef builds a ManifestRef identifier. inner is the identifier
// of the blob that decodes as the chunk manifest.
func NewManifestRef(totalSize uint64, inner Identifier) Identifier {
	innerCopy := inner
	return Identifier{kind: KindManifestRef, size: totalSize, inner: &innerCopy}
}

// NewAlias builds an Alias identifier over a copy of key.
func NewAlias(key []byte) Identifier {
	cp := make([]byte, len(key))
	copy(cp, key)
	return Identifier{kind: KindAlias, key: cp}
}

// Kind returns which variant id is.
func (id Identifier) Kind() Kind { return id.kind }

// IsZero reports whether id is the zero value (no variant set). Callers
// use this as a sentinel for "no node persisted yet" rather than a
// pointer or an extra boolean.
func (id Identifier) IsZero() bool { return id.kind == 0 }

// AsData returns the inlined bytes and true if id is a Data identifier.
func (id Identifier) AsData() ([]byte, bool) {
	if id.kind != KindData {
		return nil, false
	}
	return id.inline, true
}

// AsHashRef returns the digest and size if id is a HashRef identifier.
func (id Identifier) AsHashRef() (hash.Hash, uint64, bool) {
	if id.kind != KindHashRef {
		return hash.Hash{}, 0, false
	}
	return id.h, id.size, true
}

// AsManifestRef returns the total payload size and inner identifier if id
// is a ManifestRef identifier.
func (id Identifier) AsManifestRef() (uint64, Identifier, bool) {
	if id.kind != KindManifestRef {
		return 0, Identifier{}, false
	}
	return id.size, *id.inner, true
}

// AsAlias returns the alias key if id is an Alias identifier.
func (id Identifier) AsAlias() ([]byte, bool) {
	if id.kind != KindAlias {
		return nil, false
	}
	return id.key, true
}

// Equal reports whether id and other encode to the same canonical bytes
// (spec.md §3: "equal bytes ⇒ equal identifier").
func (id Identifier) Equal(other Identifier) bool {
	return string(id.Encode()) == string(other.Encode())
}

// Encode returns the canonical wire encoding of id (spec.md §6).
func (id Identifier) Encode() []byte {
	var buf []byte
	switch id.kind {
	case KindData:
		buf = make([]byte, 0, 2+len(id.inline))
		buf = append(buf, byte(KindData), byte(len(id.inline)))
		buf = append(buf, id.inline...)
	case KindHashRef:
		szBuf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(szBuf, id.size)
		buf = make([]byte, 0, 1+hash.ByteLen+n)
		buf = append(buf, byte(KindHashRef))
		hb := id.h
		buf = append(buf, hb[:]...)
		buf = append(buf, szBuf[:n]...)
	case KindManifestRef:
		szBuf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(szBuf, id.size)
		inner := id.inner.Encode()
		buf = make([]byte, 0, 1+n+len(inner))
		buf = append(buf, byte(KindManifestRef))
		buf = append(buf, szBuf[:n]...)
		buf = append(buf, inner...)
	case KindAlias:
		lBuf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(lBuf, uint64(len(id.key)))
		buf = make([]byte, 0, 1+n+len(id.key))
		buf = append(buf, byte(KindAlias))
		buf = append(buf, lBuf[:n]...)
		buf = append(buf, id.key...)
	default:
		panic(fmt.Sprintf("id: encode of invalid identifier kind %d", id.kind))
	}
	return buf
}

// Decode parses an Identifier from the front of b, returning the
// identifier and the number of bytes consumed.
func Decode(b []byte) (Identifier, int, error) {
	if len(b) < 1 {
		return Identifier{}, 0, fmt.Errorf("id: decode: %w: empty input", errs.ErrInvalidManifest)
	}
	kind := Kind(b[0])
	switch kind {
	case KindData:
		if len(b) < 2 {
			return Identifier{}, 0, fmt.Errorf("id: decode Data: %w: truncated length", errs.ErrInvalidManifest)
		}
		n := int(b[1])
		if len(b) < 2+n {
			return Identifier{}, 0, fmt.Errorf("id: decode Data: %w: truncated payload", errs.ErrInvalidManifest)
		}
		return NewData(b[2 : 2+n]), 2 + n, nil

	case KindHashRef:
		if len(b) < 1+hash.ByteLen {
			return Identifier{}, 0, fmt.Errorf("id: decode HashRef: %w: truncated digest", errs.ErrInvalidManifest)
		}
		var h hash.Hash
		copy(h[:], b[1:1+hash.ByteLen])
		size, n := binary.Uvarint(b[1+hash.ByteLen:])
		if n <= 0 {
			return Identifier{}, 0, fmt.Errorf("id: decode HashRef: %w: bad size varint", errs.ErrInvalidManifest)
		}
		return NewHashRef(h, size), 1 + hash.ByteLen + n, nil

	case KindManifestRef:
		totalSize, n := binary.Uvarint(b[1:])
		if n <= 0 {
			return Identifier{}, 0, fmt.Errorf("id: decode ManifestRef: %w: bad size varint", errs.ErrInvalidManifest)
		}
		inner, m, err := Decode(b[1+n:])
		if err != nil {
			return Identifier{}, 0, err
		}
		return NewManifestRef(totalSize, inner), 1 + n + m, nil

	case KindAlias:
		keyLen, n := binary.Uvarint(b[1:])
		if n <= 0 {
			return Identifier{}, 0, fmt.Errorf("id: decode Alias: %w: bad key-length varint", errs.ErrInvalidManifest)
		}
		start := 1 + n
		end := start + int(keyLen)
		if len(b) < end {
			return Identifier{}, 0, fmt.Errorf("id: decode Alias: %w: truncated key", errs.ErrInvalidManifest)
		}
		return NewAlias(b[start:end]), end, nil

	default:
		return Identifier{}, 0, fmt.Errorf("id: decode: %w: unknown discriminant %d", errs.ErrInvalidManifest, b[0])
	}
}
