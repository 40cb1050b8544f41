// Package treenode implements the persisted tree-node representation
// shared by the Static Indexer (spec.md C3): an immutable value carrying
// an ordered list of (local_key, child) entries plus exact aggregates
// over the leaves reachable from it.
package treenode

import (
	"bytes"
	"sort"

	"github.com/dolthub/corestore/id"
)

// ChildKind discriminates whether an entry's child is a leaf payload or a
// nested persisted node.
type ChildKind byte

const (
	// Leaf identifies a child that is itself a resource identifier.
	Leaf ChildKind = 0x00
	// Branch identifies a child that is the identifier of a nested,
	// persisted Node.
	Branch ChildKind = 0x01
)

// Child is the closed sum spec.md §3 describes: either a Leaf(Identifier)
// or a Branch(TreeIdentifier).
type Child struct {
	Kind ChildKind
	// Leaf holds the leaf payload's identifier when Kind == Leaf.
	Leaf id.Identifier
	// Branch holds the nested node's TreeIdentifier when Kind == Branch.
	Branch TreeIdentifier
}

// NewLeafChild builds a Leaf child.
func NewLeafChild(leaf id.Identifier) Child {
	return Child{Kind: Leaf, Leaf: leaf}
}

// NewBranchChild builds a Branch child.
func NewBranchChild(branch TreeIdentifier) Child {
	return Child{Kind: Branch, Branch: branch}
}

// TreeIdentifier is the identifier of a persisted tree node.
type TreeIdentifier = id.Identifier

// Entry pairs a local key with its child (spec.md §3 "children").
type Entry struct {
	LocalKey []byte
	Child    Child
}

// Node is spec.md §3's tree node: an ordered sequence of (local_key,
// child) entries, plus exact aggregates over the leaves reachable from
// it. Children are kept sorted by LocalKey, and all of a node's local
// keys share one length (the node's "local-key length") except when the
// node is empty, which has no defined local-key length.
type Node struct {
	Children  []Entry
	Count     uint64
	TotalSize uint64
}

// Empty returns the empty node (zero leaves, no children).
func Empty() Node {
	return Node{}
}

// DirectCount returns the number of entries in Children.
func (n Node) DirectCount() int {
	return len(n.Children)
}

// IsEmpty reports whether n has no children.
func (n Node) IsEmpty() bool {
	return len(n.Children) == 0
}

// LocalKeyLength returns the shared length of every child's local key,
// and false if n is empty (undefined local-key length, spec.md §3).
func (n Node) LocalKeyLength() (int, bool) {
	if n.IsEmpty() {
		return 0, false
	}
	return len(n.Children[0].LocalKey), true
}

func (n Node) search(localKey []byte) int {
	return sort.Search(len(n.Children), func(i int) bool {
		return bytes.Compare(n.Children[i].LocalKey, localKey) >= 0
	})
}

// LookupChild returns the child registered under the exact local key, if
// any.
func (n Node) LookupChild(localKey []byte) (Child, bool) {
	i := n.search(localKey)
	if i < len(n.Children) && bytes.Equal(n.Children[i].LocalKey, localKey) {
		return n.Children[i].Child, true
	}
	return Child{}, false
}

// InsertChild inserts or replaces the entry at localKey, returning the
// replaced child if one existed. The returned Node is a new value; n is
// not mutated (copy-on-write, matching tree nodes' immutability).
func (n Node) InsertChild(localKey []byte, child Child) (Node, *Child) {
	key := append([]byte(nil), localKey...)
	i := n.search(key)

	if i < len(n.Children) && bytes.Equal(n.Children[i].LocalKey, key) {
		replaced := n.Children[i].Child
		children := append([]Entry(nil), n.Children...)
		children[i] = Entry{LocalKey: key, Child: child}
		return Node{Children: children, Count: n.Count, TotalSize: n.TotalSize}, &replaced
	}

	children := make([]Entry, 0, len(n.Children)+1)
	children = append(children, n.Children[:i]...)
	children = append(children, Entry{LocalKey: key, Child: child})
	children = append(children, n.Children[i:]...)
	return Node{Children: children, Count: n.Count, TotalSize: n.TotalSize}, nil
}

// RemoveChild removes and returns the entry at the exact local key, if
// present.
func (n Node) RemoveChild(localKey []byte) (Node, Child, bool) {
	i := n.search(localKey)
	if i >= len(n.Children) || !bytes.Equal(n.Children[i].LocalKey, localKey) {
		return n, Child{}, false
	}
	removed := n.Children[i].Child
	children := make([]Entry, 0, len(n.Children)-1)
	children = append(children, n.Children[:i]...)
	children = append(children, n.Children[i+1:]...)
	return Node{Children: children, Count: n.Count, TotalSize: n.TotalSize}, removed, true
}

// WithAggregates returns a copy of n with Count and TotalSize replaced.
func (n Node) WithAggregates(count, totalSize uint64) Node {
	return Node{Children: n.Children, Count: count, TotalSize: totalSize}
}
