package index

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/provider"
	"github.com/dolthub/corestore/storage"
	"github.com/dolthub/corestore/treenode"
)

func newTestIndexer(t *testing.T, keyLen, min, max int) (*Indexer, *provider.Provider) {
	t.Helper()
	p := provider.New(storage.NewMemoryBlobStore(), storage.NewMemoryAliasStore(), provider.DefaultConfig())
	return New(treenode.NewStore(p), keyLen, min, max), p
}

func u32key(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func writeLeaf(t *testing.T, ctx context.Context, p *provider.Provider, payload string) (id.Identifier, uint64) {
	t.Helper()
	leafID, err := p.Write(ctx, []byte(payload))
	require.NoError(t, err)
	return leafID, uint64(len(payload))
}

// Scenario 4 (spec.md §8): static indexer life cycle with a split and
// removals.
func TestIndexerLifecycleSplitAndRemove(t *testing.T) {
	ctx := context.Background()
	ix, p := newTestIndexer(t, 4, 2, 4)

	rootID, err := ix.NewEmptyRoot(ctx)
	require.NoError(t, err)

	payloads := map[uint32]string{0: "a", 1: "bigger", 2: "node3", 3: "node4"}
	for _, n := range []uint32{0, 1, 2, 3} {
		leafID, size := writeLeaf(t, ctx, p, payloads[n])
		rootID, err = ix.Insert(ctx, rootID, u32key(n), leafID, size)
		require.NoError(t, err)
	}

	root, err := ix.store.Get(ctx, rootID)
	require.NoError(t, err)
	assert.Equal(t, 4, root.DirectCount())
	assert.Equal(t, uint64(4), root.Count)

	leafID, size := writeLeaf(t, ctx, p, "fifth")
	rootID, err = ix.Insert(ctx, rootID, u32key(0x00000100), leafID, size)
	require.NoError(t, err)

	root, err = ix.store.Get(ctx, rootID)
	require.NoError(t, err)
	assert.Equal(t, 2, root.DirectCount(), "split should produce 2 direct children")
	assert.Equal(t, uint64(5), root.Count)

	for _, n := range []uint32{0, 1, 2, 3, 0x00000100} {
		got, ok, err := ix.Get(ctx, rootID, u32key(n))
		require.NoError(t, err)
		require.True(t, ok)
		_ = got
	}

	// duplicate insert fails
	dupLeaf, dupSize := writeLeaf(t, ctx, p, "dup")
	_, err = ix.Insert(ctx, rootID, u32key(0), dupLeaf, dupSize)
	assert.ErrorIs(t, err, errs.ErrLeafAlreadyExists)

	for _, n := range []uint32{1, 2, 3} {
		rootID, err = ix.Remove(ctx, rootID, u32key(n))
		require.NoError(t, err)
	}

	root, err = ix.store.Get(ctx, rootID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), root.Count)

	for _, n := range []uint32{1, 2, 3} {
		_, ok, err := ix.Get(ctx, rootID, u32key(n))
		require.NoError(t, err)
		assert.False(t, ok)
	}

	rootID, err = ix.Remove(ctx, rootID, u32key(0))
	require.NoError(t, err)
	rootID, err = ix.Remove(ctx, rootID, u32key(0x00000100))
	require.NoError(t, err)

	root, err = ix.store.Get(ctx, rootID)
	require.NoError(t, err)
	assert.True(t, root.IsEmpty())
	assert.Equal(t, uint64(0), root.Count)
	assert.Equal(t, uint64(0), root.TotalSize)

	_, err = ix.Remove(ctx, rootID, u32key(0))
	assert.ErrorIs(t, err, errs.ErrLeafNotFound)
}

// Scenario 5 (spec.md §8): range query.
func TestEnumerateLeavesInRange(t *testing.T) {
	ctx := context.Background()
	ix, p := newTestIndexer(t, 4, 2, 256)

	rootID, err := ix.NewEmptyRoot(ctx)
	require.NoError(t, err)

	values := []uint32{1, 2, 8, 256, 512}
	for _, n := range values {
		leafID, size := writeLeaf(t, ctx, p, "v")
		rootID, err = ix.Insert(ctx, rootID, u32key(n), leafID, size)
		require.NoError(t, err)
	}

	it, err := ix.EnumerateLeavesInRange(rootID, Range{
		Lower: u32key(2), Upper: u32key(300),
		LowerInclusive: true, UpperInclusive: true,
	})
	require.NoError(t, err)

	var got []uint32
	for {
		entry, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		require.NoError(t, entry.Err)
		got = append(got, binary.BigEndian.Uint32(entry.Key))
	}
	assert.Equal(t, []uint32{2, 8, 256}, got)
}

func TestReplaceLeaf(t *testing.T) {
	ctx := context.Background()
	ix, p := newTestIndexer(t, 4, 2, 256)

	rootID, err := ix.NewEmptyRoot(ctx)
	require.NoError(t, err)

	leafID, size := writeLeaf(t, ctx, p, "original")
	rootID, err = ix.Insert(ctx, rootID, u32key(1), leafID, size)
	require.NoError(t, err)

	newLeaf, newSize := writeLeaf(t, ctx, p, "replacement-payload")
	rootID, err = ix.Replace(ctx, rootID, u32key(1), newLeaf, newSize)
	require.NoError(t, err)

	got, ok, err := ix.Get(ctx, rootID, u32key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(newLeaf))

	root, err := ix.store.Get(ctx, rootID)
	require.NoError(t, err)
	assert.Equal(t, newSize, root.TotalSize)
	assert.Equal(t, uint64(1), root.Count)

	_, err = ix.Replace(ctx, rootID, u32key(99), newLeaf, newSize)
	assert.ErrorIs(t, err, errs.ErrLeafNotFound)
}

// Invariant 8 (spec.md §8): min = max = 1 yields a strict byte trie.
func TestMinMaxOneByteTrie(t *testing.T) {
	ctx := context.Background()
	ix, p := newTestIndexer(t, 2, 1, 1)

	rootID, err := ix.NewEmptyRoot(ctx)
	require.NoError(t, err)

	keys := [][]byte{{0x01, 0x02}, {0x01, 0x03}, {0x02, 0x01}}
	for _, k := range keys {
		leafID, size := writeLeaf(t, ctx, p, string(k))
		rootID, err = ix.Insert(ctx, rootID, k, leafID, size)
		require.NoError(t, err)
	}

	var walk func(treeID treenode.TreeIdentifier)
	walk = func(treeID treenode.TreeIdentifier) {
		n, err := ix.store.Get(ctx, treeID)
		require.NoError(t, err)
		if n.IsEmpty() {
			return
		}
		l, ok := n.LocalKeyLength()
		require.True(t, ok)
		assert.Equal(t, 1, l)
		for _, e := range n.Children {
			if e.Child.Kind == treenode.Branch {
				walk(e.Child.Branch)
			}
		}
	}
	walk(rootID)

	for _, k := range keys {
		_, ok, err := ix.Get(ctx, rootID, k)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestInvalidKeyLength(t *testing.T) {
	ctx := context.Background()
	ix, p := newTestIndexer(t, 4, 2, 256)
	rootID, err := ix.NewEmptyRoot(ctx)
	require.NoError(t, err)

	leafID, size := writeLeaf(t, ctx, p, "x")
	_, err = ix.Insert(ctx, rootID, []byte("short"), leafID, size)
	assert.ErrorIs(t, err, errs.ErrInvalidIndexKey)
}
