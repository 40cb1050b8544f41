package index

import (
	"context"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/treenode"
)

// Replace implements spec.md §4.4.4: swap the leaf stored at key for a
// new one, adjusting total_size by the difference in payload size.
// Fails ErrLeafNotFound if key has no leaf. A no-op (returns rootID
// unchanged) if newLeaf equals the existing leaf.
func (ix *Indexer) Replace(ctx context.Context, rootID treenode.TreeIdentifier, key []byte, newLeaf id.Identifier, newSize uint64) (treenode.TreeIdentifier, error) {
	if err := ix.checkKeyLength(key); err != nil {
		return treenode.TreeIdentifier{}, err
	}

	res, err := ix.search(ctx, rootID, key)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	if res.status != StatusLeaf {
		return treenode.TreeIdentifier{}, fmt.Errorf("index: replace %x: %w", key, errs.ErrLeafNotFound)
	}
	if newLeaf.Equal(res.leaf) {
		return rootID, nil
	}

	oldSize, err := ix.store.LeafSize(ctx, res.leaf)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	delta := int64(newSize) - int64(oldSize)

	stack := res.stack
	deepest := stack[len(stack)-1]

	node2, _ := deepest.node.InsertChild(res.headKey, treenode.NewLeafChild(newLeaf))
	node2 = node2.WithAggregates(deepest.node.Count, addSigned(deepest.node.TotalSize, delta))

	newID, err := ix.store.Put(ctx, node2)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	if !deepest.id.IsZero() {
		ix.store.Unwrite(deepest.id)
	}

	if len(stack) == 1 {
		return newID, nil
	}
	return ix.propagateReplace(ctx, stack, len(stack)-2, deepest.keyInParent, newID, delta)
}

// propagateReplace walks the remaining ancestor frames adjusting
// total_size only (count and tree structure are unaffected by a
// replace).
func (ix *Indexer) propagateReplace(ctx context.Context, stack []frame, start int, childKey []byte, childID treenode.TreeIdentifier, delta int64) (treenode.TreeIdentifier, error) {
	child := treenode.NewBranchChild(childID)
	for i := start; i >= 0; i-- {
		f := stack[i]
		node2, _ := f.node.InsertChild(childKey, child)
		node2 = node2.WithAggregates(f.node.Count, addSigned(f.node.TotalSize, delta))

		newID, err := ix.store.Put(ctx, node2)
		if err != nil {
			return treenode.TreeIdentifier{}, err
		}
		if !f.id.IsZero() {
			ix.store.Unwrite(f.id)
		}

		childKey = f.keyInParent
		child = treenode.NewBranchChild(newID)
		if i == 0 {
			return newID, nil
		}
	}
	return treenode.TreeIdentifier{}, fmt.Errorf("index: propagateReplace: empty stack: %w", errs.ErrCorruptedTree)
}
