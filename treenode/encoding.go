package treenode

import (
	"encoding/binary"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
)

// Encode returns the canonical wire encoding of n (spec.md §6
// "Tree-node wire format"): varint count, varint total_size, varint
// child_count, then child_count entries of (varint local-key length,
// local-key bytes, 1-byte child discriminant, identifier encoding).
func (n Node) Encode() []byte {
	hdr := make([]byte, 0, 3*binary.MaxVarintLen64)
	hdr = appendUvarint(hdr, n.Count)
	hdr = appendUvarint(hdr, n.TotalSize)
	hdr = appendUvarint(hdr, uint64(len(n.Children)))

	buf := hdr
	for _, e := range n.Children {
		buf = appendUvarint(buf, uint64(len(e.LocalKey)))
		buf = append(buf, e.LocalKey...)
		switch e.Child.Kind {
		case Leaf:
			buf = append(buf, byte(Leaf))
			buf = append(buf, e.Child.Leaf.Encode()...)
		case Branch:
			buf = append(buf, byte(Branch))
			buf = append(buf, e.Child.Branch.Encode()...)
		default:
			panic(fmt.Sprintf("treenode: encode: invalid child kind %d", e.Child.Kind))
		}
	}
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Decode parses a Node from its canonical wire encoding.
func Decode(b []byte) (Node, error) {
	count, n1 := binary.Uvarint(b)
	if n1 <= 0 {
		return Node{}, fmt.Errorf("treenode: decode: %w: bad count varint", errs.ErrCorruptedTree)
	}
	off := n1

	totalSize, n2 := binary.Uvarint(b[off:])
	if n2 <= 0 {
		return Node{}, fmt.Errorf("treenode: decode: %w: bad total_size varint", errs.ErrCorruptedTree)
	}
	off += n2

	childCount, n3 := binary.Uvarint(b[off:])
	if n3 <= 0 {
		return Node{}, fmt.Errorf("treenode: decode: %w: bad child_count varint", errs.ErrCorruptedTree)
	}
	off += n3

	children := make([]Entry, 0, childCount)
	for i := uint64(0); i < childCount; i++ {
		if off >= len(b) {
			return Node{}, fmt.Errorf("treenode: decode: %w: truncated entry %d", errs.ErrCorruptedTree, i)
		}
		keyLen, n4 := binary.Uvarint(b[off:])
		if n4 <= 0 {
			return Node{}, fmt.Errorf("treenode: decode: %w: bad local-key length varint", errs.ErrCorruptedTree)
		}
		off += n4

		if off+int(keyLen) > len(b) {
			return Node{}, fmt.Errorf("treenode: decode: %w: truncated local key", errs.ErrCorruptedTree)
		}
		localKey := append([]byte(nil), b[off:off+int(keyLen)]...)
		off += int(keyLen)

		if off >= len(b) {
			return Node{}, fmt.Errorf("treenode: decode: %w: missing child discriminant", errs.ErrCorruptedTree)
		}
		kind := ChildKind(b[off])
		off++

		childID, consumed, err := id.Decode(b[off:])
		if err != nil {
			return Node{}, fmt.Errorf("treenode: decode: entry %d: %w", i, err)
		}
		off += consumed

		var child Child
		switch kind {
		case Leaf:
			child = NewLeafChild(childID)
		case Branch:
			child = NewBranchChild(childID)
		default:
			return Node{}, fmt.Errorf("treenode: decode: %w: unknown child discriminant %d", errs.ErrCorruptedTree, kind)
		}
		children = append(children, Entry{LocalKey: localKey, Child: child})
	}

	return Node{Children: children, Count: count, TotalSize: totalSize}, nil
}
