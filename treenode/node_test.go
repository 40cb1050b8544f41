package treenode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/corestore/id"
)

func leafOf(payload string) Child {
	return NewLeafChild(id.NewData([]byte(payload)))
}

func TestEmptyNode(t *testing.T) {
	n := Empty()
	assert.True(t, n.IsEmpty())
	assert.Equal(t, 0, n.DirectCount())
	_, ok := n.LocalKeyLength()
	assert.False(t, ok)
}

func TestInsertLookupRemoveChild(t *testing.T) {
	n := Empty()

	n, replaced := n.InsertChild([]byte("bb"), leafOf("one"))
	assert.Nil(t, replaced)
	n, replaced = n.InsertChild([]byte("aa"), leafOf("two"))
	assert.Nil(t, replaced)

	// sorted by local key
	require.Equal(t, 2, n.DirectCount())
	assert.Equal(t, []byte("aa"), n.Children[0].LocalKey)
	assert.Equal(t, []byte("bb"), n.Children[1].LocalKey)

	got, ok := n.LookupChild([]byte("aa"))
	require.True(t, ok)
	leaf, _ := got.Leaf.AsData()
	assert.Equal(t, "two", string(leaf))

	n, replaced = n.InsertChild([]byte("aa"), leafOf("three"))
	require.NotNil(t, replaced)
	oldLeaf, _ := replaced.Leaf.AsData()
	assert.Equal(t, "two", string(oldLeaf))

	n, removed, ok := n.RemoveChild([]byte("bb"))
	require.True(t, ok)
	removedLeaf, _ := removed.Leaf.AsData()
	assert.Equal(t, "one", string(removedLeaf))
	assert.Equal(t, 1, n.DirectCount())

	_, _, ok = n.RemoveChild([]byte("zz"))
	assert.False(t, ok)
}

func TestLocalKeyLength(t *testing.T) {
	n := Empty()
	n, _ = n.InsertChild([]byte("xyz"), leafOf("v"))
	l, ok := n.LocalKeyLength()
	require.True(t, ok)
	assert.Equal(t, 3, l)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n := Empty().WithAggregates(3, 30)
	n, _ = n.InsertChild([]byte("a"), leafOf("payload-a"))
	n, _ = n.InsertChild([]byte("b"), NewBranchChild(id.NewHashRef([32]byte{9}, 64)))

	encoded := n.Encode()
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, n.Count, decoded.Count)
	assert.Equal(t, n.TotalSize, decoded.TotalSize)
	require.Equal(t, n.DirectCount(), decoded.DirectCount())
	for i, e := range n.Children {
		assert.Equal(t, e.LocalKey, decoded.Children[i].LocalKey)
		assert.Equal(t, e.Child.Kind, decoded.Children[i].Child.Kind)
		assert.True(t, childEqual(e.Child, decoded.Children[i].Child))
	}
}

func TestEncodeDecodeEmptyNode(t *testing.T) {
	encoded := Empty().Encode()
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.IsEmpty())
	assert.Equal(t, uint64(0), decoded.Count)
}

func childEqual(a, b Child) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Leaf {
		return a.Leaf.Equal(b.Leaf)
	}
	return a.Branch.Equal(b.Branch)
}
