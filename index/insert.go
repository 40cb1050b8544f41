package index

import (
	"context"
	"fmt"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/treenode"
)

// Insert implements spec.md §4.4.3: add a new leaf at key, failing
// ErrLeafAlreadyExists if one is already there. leafSize is the
// payload size behind leaf, used to maintain total_size aggregates
// without reading leaf's bytes.
func (ix *Indexer) Insert(ctx context.Context, rootID treenode.TreeIdentifier, key []byte, leaf id.Identifier, leafSize uint64) (treenode.TreeIdentifier, error) {
	if err := ix.checkKeyLength(key); err != nil {
		return treenode.TreeIdentifier{}, err
	}

	res, err := ix.search(ctx, rootID, key)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	switch res.status {
	case StatusLeaf:
		return treenode.TreeIdentifier{}, fmt.Errorf("index: insert %x: %w", key, errs.ErrLeafAlreadyExists)
	case StatusBranch:
		return treenode.TreeIdentifier{}, fmt.Errorf("index: insert %x: leaf key names a branch: %w", key, errs.ErrCorruptedTree)
	}

	stack := res.stack
	deepest := stack[len(stack)-1]

	newChildKey, newChild, err := insertTarget(deepest.node, deepest.remaining, leaf, leafSize)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	if newChild.kind == treenode.Branch {
		// L < len(remaining): a fresh one-child subtree was built to
		// hold the leaf; persist it before it can be installed above.
		subID, err := ix.store.Put(ctx, newChild.branchNode)
		if err != nil {
			return treenode.TreeIdentifier{}, err
		}
		newChild.branch = subID
	}

	newID, err := ix.installUpward(ctx, stack, len(stack)-1, newChildKey, newChild.toTreenodeChild(), leafSize, true)
	if err != nil {
		return treenode.TreeIdentifier{}, err
	}
	return newID, nil
}

// pendingChild is newChild plus, for the freshly-built one-child
// subtree case, the node that still needs persisting before its
// identifier is known.
type pendingChild struct {
	kind       treenode.ChildKind
	leaf       id.Identifier
	branch     treenode.TreeIdentifier
	branchNode treenode.Node
}

func (c pendingChild) toTreenodeChild() treenode.Child {
	if c.kind == treenode.Leaf {
		return treenode.NewLeafChild(c.leaf)
	}
	return treenode.NewBranchChild(c.branch)
}

// insertTarget implements the four-way case split of spec.md §4.4.3
// step 1, determining the key and child to install into the deepest
// frame's node.
func insertTarget(node treenode.Node, remaining []byte, leaf id.Identifier, leafSize uint64) ([]byte, pendingChild, error) {
	if node.IsEmpty() {
		return remaining, pendingChild{kind: treenode.Leaf, leaf: leaf}, nil
	}
	l, _ := node.LocalKeyLength()
	switch {
	case l == len(remaining):
		return remaining, pendingChild{kind: treenode.Leaf, leaf: leaf}, nil
	case l < len(remaining):
		head, tail := remaining[:l], remaining[l:]
		sub := treenode.Empty().WithAggregates(1, leafSize)
		sub, _ = sub.InsertChild(tail, treenode.NewLeafChild(leaf))
		return head, pendingChild{kind: treenode.Branch, branchNode: sub}, nil
	default:
		return nil, pendingChild{}, fmt.Errorf("index: insert: node local-key length %d exceeds remaining key length %d: %w", l, len(remaining), errs.ErrCorruptedTree)
	}
}

// installUpward walks stack from index start up to the root frame,
// installing (childKey, child) into stack[i].node, incrementing count
// by one and total_size by leafSize, rebalancing via splitTree, and
// persisting. It returns the new root identifier.
func (ix *Indexer) installUpward(ctx context.Context, stack []frame, start int, childKey []byte, child treenode.Child, leafSize uint64, grow bool) (treenode.TreeIdentifier, error) {
	delta := int64(leafSize)
	countDelta := int64(1)
	if !grow {
		countDelta = 0
	}

	for i := start; i >= 0; i-- {
		f := stack[i]
		node2, _ := f.node.InsertChild(childKey, child)
		node2 = node2.WithAggregates(addSigned(f.node.Count, countDelta), addSigned(f.node.TotalSize, delta))

		rebalanced, err := ix.splitTree(ctx, node2)
		if err != nil {
			return treenode.TreeIdentifier{}, err
		}

		newID, err := ix.store.Put(ctx, rebalanced)
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
	return treenode.TreeIdentifier{}, fmt.Errorf("index: installUpward: empty stack: %w", errs.ErrCorruptedTree)
}

func addSigned(v uint64, delta int64) uint64 {
	if delta >= 0 {
		return v + uint64(delta)
	}
	return v - uint64(-delta)
}
