// Package index implements the Static Indexer (spec.md C4): a balanced
// n-ary prefix tree keyed by fixed-length byte strings, persisted
// through a treenode.Store, supporting exact search, insert, replace,
// remove, and ordered range enumeration.
package index

import (
	"context"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/treenode"
)

// Indexer is spec.md §4.4's Static Indexer. Its three parameters are
// fixed at construction and apply to every tree the Indexer operates
// on.
type Indexer struct {
	// IndexKeyLength is the exact byte length every leaf key must have.
	IndexKeyLength int
	// MinChildrenPerLayer is the minimum accepted bucket count for a
	// split, and the merge trigger threshold.
	MinChildrenPerLayer int
	// MaxChildrenPerLayer is the direct-child count above which a split
	// is attempted.
	MaxChildrenPerLayer int

	store *treenode.Store
}

// DefaultMinChildrenPerLayer and DefaultMaxChildrenPerLayer mirror
// spec.md §6's stated defaults.
const (
	DefaultMinChildrenPerLayer = 2
	DefaultMaxChildrenPerLayer = 256
)

// New constructs an Indexer. It panics if the parameters violate
// spec.md §4.4's constraints (positive key length, min >= 1, max >= 1,
// min <= max) — these are configuration errors, not runtime ones.
// min = max = 1 is accepted and yields a byte-per-layer trie.
func New(store *treenode.Store, indexKeyLength, minChildrenPerLayer, maxChildrenPerLayer int) *Indexer {
	if indexKeyLength <= 0 {
		panic("index: IndexKeyLength must be positive")
	}
	if minChildrenPerLayer < 1 {
		panic("index: MinChildrenPerLayer must be >= 1")
	}
	if maxChildrenPerLayer < 1 {
		panic("index: MaxChildrenPerLayer must be >= 1")
	}
	if minChildrenPerLayer > maxChildrenPerLayer {
		panic("index: MinChildrenPerLayer must be <= MaxChildrenPerLayer")
	}
	return &Indexer{
		IndexKeyLength:      indexKeyLength,
		MinChildrenPerLayer: minChildrenPerLayer,
		MaxChildrenPerLayer: maxChildrenPerLayer,
		store:               store,
	}
}

// NewEmptyRoot persists and returns the identifier of a fresh empty
// tree, the starting root for an Indexer with no leaves yet.
func (ix *Indexer) NewEmptyRoot(ctx context.Context) (treenode.TreeIdentifier, error) {
	return ix.store.Put(ctx, treenode.Empty())
}

func (ix *Indexer) checkKeyLength(key []byte) error {
	if len(key) != ix.IndexKeyLength {
		return fmt.Errorf("index: key length %d, want %d: %w", len(key), ix.IndexKeyLength, errs.ErrInvalidIndexKey)
	}
	return nil
}

// frame is one level of the traversal stack built by search and
// consumed (bottom-up) by Insert/Replace/Remove.
type frame struct {
	id        treenode.TreeIdentifier // identifier this node is currently persisted under; IsZero() if not yet persisted
	node      treenode.Node
	remaining []byte // key bytes not yet consumed on arrival at this node
	keyInParent []byte // local key under which this node is installed in its parent; nil for the root frame
}

// Status discriminates the three outcomes of a search.
type Status int

const (
	// StatusNotFound means no child existed at the point key ran out or
	// diverged.
	StatusNotFound Status = iota
	// StatusLeaf means the full key led to a Leaf child.
	StatusLeaf
	// StatusBranch means the full key led to a Branch child (a nested
	// tree root, not a leaf).
	StatusBranch
)

// searchResult is the outcome of walking a tree for a key, carrying the
// traversal stack mutating operations need to propagate changes upward.
type searchResult struct {
	status Status
	stack  []frame
	// headKey is the local key under which the Leaf/Branch child was
	// found in stack's last frame; set only when status != NotFound.
	headKey []byte
	leaf    id.Identifier
	branch  treenode.TreeIdentifier
}

// search implements spec.md §4.4.1.
func (ix *Indexer) search(ctx context.Context, rootID treenode.TreeIdentifier, key []byte) (searchResult, error) {
	rootNode, err := ix.store.Get(ctx, rootID)
	if err != nil {
		return searchResult{}, err
	}

	stack := []frame{{id: rootID, node: rootNode, remaining: key}}
	for {
		top := &stack[len(stack)-1]
		l, ok := top.node.LocalKeyLength()
		if !ok {
			return searchResult{status: StatusNotFound, stack: stack}, nil
		}
		if len(top.remaining) < l {
			return searchResult{status: StatusNotFound, stack: stack}, nil
		}
		head, tail := top.remaining[:l], top.remaining[l:]

		child, found := top.node.LookupChild(head)
		if !found {
			return searchResult{status: StatusNotFound, stack: stack}, nil
		}

		switch child.Kind {
		case treenode.Leaf:
			if len(tail) != 0 {
				return searchResult{}, fmt.Errorf("index: search: leaf at non-terminal prefix: %w", errs.ErrCorruptedTree)
			}
			return searchResult{status: StatusLeaf, stack: stack, headKey: head, leaf: child.Leaf}, nil

		case treenode.Branch:
			if len(tail) == 0 {
				return searchResult{status: StatusBranch, stack: stack, headKey: head, branch: child.Branch}, nil
			}
			childNode, err := ix.store.Get(ctx, child.Branch)
			if err != nil {
				return searchResult{}, err
			}
			stack = append(stack, frame{id: child.Branch, node: childNode, remaining: tail, keyInParent: head})

		default:
			return searchResult{}, fmt.Errorf("index: search: unknown child kind %d: %w", child.Kind, errs.ErrCorruptedTree)
		}
	}
}

// Search is the exported form of spec.md §4.4.1, returning only the
// terminal status and the matched leaf/branch identifier; callers that
// need the traversal stack use Insert/Replace/Remove instead.
func (ix *Indexer) Search(ctx context.Context, rootID treenode.TreeIdentifier, key []byte) (Status, id.Identifier, treenode.TreeIdentifier, error) {
	if err := ix.checkKeyLength(key); err != nil {
		return StatusNotFound, id.Identifier{}, treenode.TreeIdentifier{}, err
	}
	res, err := ix.search(ctx, rootID, key)
	if err != nil {
		return StatusNotFound, id.Identifier{}, treenode.TreeIdentifier{}, err
	}
	return res.status, res.leaf, res.branch, nil
}

// Get is spec.md §4.4.2's exact lookup: the leaf at key, or ok=false if
// absent or if key names a Branch.
func (ix *Indexer) Get(ctx context.Context, rootID treenode.TreeIdentifier, key []byte) (id.Identifier, bool, error) {
	status, leaf, _, err := ix.Search(ctx, rootID, key)
	if err != nil {
		return id.Identifier{}, false, err
	}
	if status != StatusLeaf {
		return id.Identifier{}, false, nil
	}
	return leaf, true, nil
}
