package treenode

import (
	"context"
	"fmt"

	"github.com/dolthub/corestore/id"
)

// contentProvider is the subset of *provider.Provider the Store needs;
// declared as an interface so callers can pass a transaction overlay or
// a test double.
type contentProvider interface {
	Write(ctx context.Context, data []byte) (id.Identifier, error)
	Read(ctx context.Context, theID id.Identifier) ([]byte, error)
	ReadSize(ctx context.Context, theID id.Identifier) (uint64, error)
	Unwrite(theID id.Identifier)
}

// Store persists and materialises Nodes on demand through a Content
// Provider (spec.md §4.3: "an on-disk tree-node encoding written through
// the Content Provider"). Nodes themselves are immutable; Store never
// mutates a persisted node, only writes new ones.
type Store struct {
	cp contentProvider
}

// NewStore wraps p for tree-node persistence.
func NewStore(p contentProvider) *Store {
	return &Store{cp: p}
}

// Put persists n and returns its TreeIdentifier.
func (s *Store) Put(ctx context.Context, n Node) (TreeIdentifier, error) {
	theID, err := s.cp.Write(ctx, n.Encode())
	if err != nil {
		return id.Identifier{}, fmt.Errorf("treenode: put: %w", err)
	}
	return theID, nil
}

// Get materialises the node named by treeID.
func (s *Store) Get(ctx context.Context, treeID TreeIdentifier) (Node, error) {
	data, err := s.cp.Read(ctx, treeID)
	if err != nil {
		return Node{}, fmt.Errorf("treenode: get: %w", err)
	}
	n, err := Decode(data)
	if err != nil {
		return Node{}, err
	}
	return n, nil
}

// Unwrite releases the local refcount held on treeID, used when the
// upward rebalance walk replaces a node with a new one (spec.md §4.4.3:
// "unwrite the previous root").
func (s *Store) Unwrite(treeID TreeIdentifier) {
	s.cp.Unwrite(treeID)
}

// LeafSize returns the payload size named by a Leaf child's identifier,
// used when computing a node's total_size aggregate without reading the
// leaf's bytes.
func (s *Store) LeafSize(ctx context.Context, leaf id.Identifier) (uint64, error) {
	size, err := s.cp.ReadSize(ctx, leaf)
	if err != nil {
		return 0, fmt.Errorf("treenode: leaf size: %w", err)
	}
	return size, nil
}

// Provider gives direct access to the underlying Content Provider for
// resolving Leaf identifiers, which are opaque payload references rather
// than tree nodes.
func (s *Store) Provider() contentProvider {
	return s.cp
}
