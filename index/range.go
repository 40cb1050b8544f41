package index

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/treenode"
)

// Range describes the bounds of an ordered range query (spec.md
// §4.4.7). Lower and Upper must both have IndexKeyLength bytes.
type Range struct {
	Lower, Upper             []byte
	LowerInclusive, UpperInclusive bool
}

// RangeEntry is one item yielded by a RangeIter.
type RangeEntry struct {
	Key  []byte
	Leaf id.Identifier
	// Err is set when this child's subtree could not be read; Key/Leaf
	// are meaningless when Err != nil. Enumeration continues past an
	// errored entry.
	Err error
}

type pendingNode struct {
	prefix []byte
	treeID treenode.TreeIdentifier
}

// RangeIter lazily walks a tree depth-first, visiting each node's
// children in ascending key order, so it yields leaves in ascending key
// order, and only those within the configured Range (spec.md §4.4.7).
type RangeIter struct {
	ix    *Indexer
	rng   Range
	queue []pendingNode
	ready []RangeEntry
}

// EnumerateLeavesInRange returns a lazy iterator over the leaves of the
// tree rooted at rootID whose keys fall within rng.
func (ix *Indexer) EnumerateLeavesInRange(rootID treenode.TreeIdentifier, rng Range) (*RangeIter, error) {
	if len(rng.Lower) != ix.IndexKeyLength || len(rng.Upper) != ix.IndexKeyLength {
		return nil, fmt.Errorf("index: range bounds must be %d bytes: %w", ix.IndexKeyLength, errs.ErrInvalidIndexKey)
	}
	return &RangeIter{
		ix:    ix,
		rng:   rng,
		queue: []pendingNode{{prefix: nil, treeID: rootID}},
	}, nil
}

// Next advances the iterator, returning the next in-range entry and
// true, or a zero RangeEntry and false once exhausted.
func (it *RangeIter) Next(ctx context.Context) (RangeEntry, bool, error) {
	for len(it.ready) == 0 {
		if len(it.queue) == 0 {
			return RangeEntry{}, false, nil
		}
		if err := it.fill(ctx); err != nil {
			return RangeEntry{}, false, err
		}
	}
	entry := it.ready[0]
	it.ready = it.ready[1:]
	return entry, true, nil
}

// fill processes exactly one pending node: reading it, and for each of
// its children either buffering a ready leaf, queueing an in-range
// branch ahead of the nodes already pending, or pruning an out-of-range
// child.
func (it *RangeIter) fill(ctx context.Context) error {
	pn := it.queue[0]
	it.queue = it.queue[1:]

	node, err := it.ix.store.Get(ctx, pn.treeID)
	if err != nil {
		it.ready = append(it.ready, RangeEntry{Err: fmt.Errorf("index: range: read node at %x: %w", pn.prefix, err)})
		return nil
	}

	full := it.ix.IndexKeyLength
	var branches []pendingNode
	for _, e := range node.Children {
		newPrefix := append(append([]byte(nil), pn.prefix...), e.LocalKey...)

		if len(newPrefix) < full {
			if bytes.Compare(newPrefix, it.rng.Lower[:len(newPrefix)]) < 0 {
				continue
			}
			if bytes.Compare(newPrefix, it.rng.Upper[:len(newPrefix)]) > 0 {
				break
			}
		} else {
			cmpLower := bytes.Compare(newPrefix, it.rng.Lower)
			if cmpLower < 0 || (cmpLower == 0 && !it.rng.LowerInclusive) {
				continue
			}
			cmpUpper := bytes.Compare(newPrefix, it.rng.Upper)
			if cmpUpper > 0 || (cmpUpper == 0 && !it.rng.UpperInclusive) {
				break
			}
		}

		switch e.Child.Kind {
		case treenode.Leaf:
			if len(newPrefix) == full {
				it.ready = append(it.ready, RangeEntry{Key: newPrefix, Leaf: e.Child.Leaf})
			} else {
				it.ready = append(it.ready, RangeEntry{Err: fmt.Errorf("index: range: leaf at non-terminal prefix %x: %w", newPrefix, errs.ErrCorruptedTree)})
			}
		case treenode.Branch:
			branches = append(branches, pendingNode{prefix: newPrefix, treeID: e.Child.Branch})
		}
	}
	it.queue = append(branches, it.queue...)
	return nil
}
