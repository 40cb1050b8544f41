package index

import (
	"context"
	"sort"

	"github.com/dolthub/corestore/treenode"
)

// splitTree implements spec.md §4.4.6's split_tree, invoked after an
// insert grows a node past MaxChildrenPerLayer.
func (ix *Indexer) splitTree(ctx context.Context, n treenode.Node) (treenode.Node, error) {
	if n.DirectCount() <= ix.MaxChildrenPerLayer {
		return n, nil
	}
	l, ok := n.LocalKeyLength()
	if !ok {
		return n, nil
	}

	for splitIndex := 1; splitIndex < l; splitIndex++ {
		buckets, order := bucketByPrefix(n.Children, splitIndex)
		if len(order) < ix.MinChildrenPerLayer {
			continue
		}

		out := treenode.Empty().WithAggregates(n.Count, n.TotalSize)
		for _, prefix := range order {
			entries := buckets[prefix]
			shortened := make([]treenode.Entry, len(entries))
			for i, e := range entries {
				shortened[i] = treenode.Entry{LocalKey: e.LocalKey[splitIndex:], Child: e.Child}
			}
			sub := treenode.Node{Children: shortened}
			count, totalSize, err := ix.aggregateOf(ctx, shortened)
			if err != nil {
				return treenode.Node{}, err
			}
			sub = sub.WithAggregates(count, totalSize)

			subID, err := ix.store.Put(ctx, sub)
			if err != nil {
				return treenode.Node{}, err
			}
			out, _ = out.InsertChild([]byte(prefix), treenode.NewBranchChild(subID))
		}
		return out, nil
	}
	return n, nil
}

// mergeTree implements spec.md §4.4.6's merge_tree, invoked after a
// remove shrinks a node below MinChildrenPerLayer.
func (ix *Indexer) mergeTree(ctx context.Context, n treenode.Node) (treenode.Node, error) {
	if _, ok := n.LocalKeyLength(); !ok {
		return n, nil
	}
	if n.DirectCount() >= ix.MinChildrenPerLayer {
		return n, nil
	}
	if n.Count < uint64(ix.MinChildrenPerLayer) {
		return n, nil
	}
	for _, e := range n.Children {
		if e.Child.Kind != treenode.Branch {
			return n, nil
		}
	}

	merged := treenode.Empty().WithAggregates(n.Count, n.TotalSize)
	for _, e := range n.Children {
		sub, err := ix.store.Get(ctx, e.Child.Branch)
		if err != nil {
			return treenode.Node{}, err
		}
		for _, subEntry := range sub.Children {
			fullKey := append(append([]byte(nil), e.LocalKey...), subEntry.LocalKey...)
			merged, _ = merged.InsertChild(fullKey, subEntry.Child)
		}
		ix.store.Unwrite(e.Child.Branch)
	}

	return ix.splitTree(ctx, merged)
}

// aggregateOf sums the (count, total_size) contribution of entries: 1
// and the leaf's stored size for a Leaf child, or the nested subtree's
// own stored aggregates for a Branch child.
func (ix *Indexer) aggregateOf(ctx context.Context, entries []treenode.Entry) (count, totalSize uint64, err error) {
	for _, e := range entries {
		switch e.Child.Kind {
		case treenode.Leaf:
			size, err := ix.store.LeafSize(ctx, e.Child.Leaf)
			if err != nil {
				return 0, 0, err
			}
			count++
			totalSize += size
		case treenode.Branch:
			sub, err := ix.store.Get(ctx, e.Child.Branch)
			if err != nil {
				return 0, 0, err
			}
			count += sub.Count
			totalSize += sub.TotalSize
		}
	}
	return count, totalSize, nil
}

// bucketByPrefix groups entries by the first prefixLen bytes of their
// local key, preserving the ascending order entries already appear in
// (entries is sorted by local key, so concatenating buckets in the
// order their prefix first appears yields a sorted result).
func bucketByPrefix(entries []treenode.Entry, prefixLen int) (map[string][]treenode.Entry, []string) {
	buckets := make(map[string][]treenode.Entry)
	var order []string
	for _, e := range entries {
		prefix := string(e.LocalKey[:prefixLen])
		if _, ok := buckets[prefix]; !ok {
			order = append(order, prefix)
		}
		buckets[prefix] = append(buckets[prefix], e)
	}
	sort.Strings(order)
	return buckets, order
}
