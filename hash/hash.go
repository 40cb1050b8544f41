// Package hash implements the content digest used to name stored blobs.
//
// The digest is a fixed-width, collision-resistant hash of the exact bytes
// being stored (spec.md §3, Identifier invariants). Values are printed and
// parsed using a lowercase base32 alphabet, following the same convention
// the teacher's noms-descended hash package uses for human-readable
// identifiers.
package hash

import (
	"encoding/base32"
	"fmt"

	"github.com/zeebo/blake3"
)

// ByteLen is the width of a Hash in bytes (blake3-256 output).
const ByteLen = 32

// StringLen is the width of a Hash's canonical string encoding.
const StringLen = 52 // ceil(32*8/5)

// alphabet follows the teacher's digits-then-lowercase convention for
// human-readable, URL-safe hash strings.
const alphabet = "0123456789abcdefghijklmnopqrstuv"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Hash is a fixed-width content digest. The zero value is the empty hash.
type Hash [ByteLen]byte

// Of computes the digest of data.
func Of(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// Parse decodes s into a Hash, panicking if s is not a well-formed
// encoding. Use MaybeParse when the input isn't known to be valid.
func Parse(s string) Hash {
	h, ok := MaybeParse(s)
	if !ok {
		panic(fmt.Sprintf("hash: invalid hash string %q", s))
	}
	return h
}

// MaybeParse decodes s into a Hash, returning ok=false if s is malformed.
func MaybeParse(s string) (h Hash, ok bool) {
	if len(s) != StringLen {
		return Hash{}, false
	}
	decoded, err := encoding.DecodeString(s)
	if err != nil {
		return Hash{}, false
	}
	copy(h[:], decoded)
	return h, true
}

// String returns the canonical base32 encoding of h.
func (h Hash) String() string {
	return encoding.EncodeToString(h[:])
}

// IsEmpty reports whether h is the zero value.
func (h Hash) IsEmpty() bool {
	return h == Hash{}
}

// Less reports whether h sorts strictly before other.
func (h Hash) Less(other Hash) bool {
	return h.Compare(other) < 0
}

// Compare returns -1, 0, or 1 as h is less than, equal to, or greater than
// other, in byte-lexicographic order.
func (h Hash) Compare(other Hash) int {
	for i := range h {
		if h[i] != other[i] {
			if h[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Bytes returns a copy of h's underlying bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, ByteLen)
	copy(out, h[:])
	return out
}
