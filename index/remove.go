package index

import (
	"context"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/treenode"
)

// Remove implements spec.md §4.4.5: delete the leaf at key. Fails
// ErrLeafNotFound if key has no leaf.
func (ix *Indexer) Remove(ctx context.Context, rootID treenode.TreeIdentifier, key []byte) (treenode.TreeIdentifier, error) {
	if err := ix.checkKeyLength(key); err != nil {
		return treenode.TreeIdentifier{}, err
	}

	res, err := ix.search(ctx, rootID, key)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	if res.status != StatusLeaf {
		return treenode.TreeIdentifier{}, fmt.Errorf("index: remove %x: %w", key, errs.ErrLeafNotFound)
	}

	leafSize, err := ix.store.LeafSize(ctx, res.leaf)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}

	stack := res.stack
	i := len(stack) - 1
	deepest := stack[i]

	node2, _, _ := deepest.node.RemoveChild(res.headKey)
	if !deepest.id.IsZero() {
		ix.store.Unwrite(deepest.id)
	}

	if node2.IsEmpty() {
		// Delete mode: this node has nothing left, so its entry is
		// removed from its parent rather than being persisted itself.
		childKey := deepest.keyInParent
		i--
		for i >= 0 {
			anc := stack[i]
			ancNode2, _, _ := anc.node.RemoveChild(childKey)
			if !anc.id.IsZero() {
				ix.store.Unwrite(anc.id)
			}
			if ancNode2.IsEmpty() {
				childKey = anc.keyInParent
				i--
				continue
			}
			// First non-empty ancestor: switch to update mode here.
			return ix.finishRemoveUpdate(ctx, stack, i, ancNode2, anc, leafSize)
		}
		// Deleted all the way past the root: the tree is now empty.
		return ix.store.Put(ctx, treenode.Empty())
	}

	return ix.finishRemoveUpdate(ctx, stack, i, node2, deepest, leafSize)
}

// finishRemoveUpdate applies spec.md §4.4.5's "update mode": decrement
// count/total_size on the first non-empty node reached, merge_tree it,
// persist, and propagate the resulting branch upward through the
// remaining ancestors exactly like a replace (count -1, size -leafSize
// at every level, but rebalanced with merge_tree instead of left
// untouched).
func (ix *Indexer) finishRemoveUpdate(ctx context.Context, stack []frame, i int, node treenode.Node, orig frame, leafSize uint64) (treenode.TreeIdentifier, error) {
	node = node.WithAggregates(orig.node.Count-1, orig.node.TotalSize-leafSize)
	node, err := ix.mergeTree(ctx, node)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}

	newID, err := ix.store.Put(ctx, node)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}

	if i == 0 {
		return newID, nil
	}
	return ix.propagateRemove(ctx, stack, i-1, orig.keyInParent, newID, leafSize)
}

// propagateRemove walks the remaining ancestor frames, replacing the
// child entry, decrementing count/total_size, and re-running merge_tree
// at every level.
func (ix *Indexer) propagateRemove(ctx context.Context, stack []frame, start int, childKey []byte, childID treenode.TreeIdentifier, leafSize uint64) (treenode.TreeIdentifier, error) {
	child := treenode.NewBranchChild(childID)
	for i := start; i >= 0; i-- {
		f := stack[i]
		node2, _ := f.node.InsertChild(childKey, child)
		node2 = node2.WithAggregates(f.node.Count-1, f.node.TotalSize-leafSize)

		node2, err := ix.mergeTree(ctx, node2)
		if err != nil {
			return treenode.TreeIdentifier{}, err
		}

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
	return treenode.TreeIdentifier{}, fmt.Errorf("index: propagateRemove: empty stack: %w", errs.ErrCorruptedTree)
}
