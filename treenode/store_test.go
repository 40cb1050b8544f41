package treenode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/provider"
	"github.com/dolthub/corestore/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	p := provider.New(storage.NewMemoryBlobStore(), storage.NewMemoryAliasStore(), provider.DefaultConfig())
	return NewStore(p)
}

func TestStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := Empty().WithAggregates(1, 5)
	n, _ = n.InsertChild([]byte("k"), NewLeafChild(id.NewData([]byte("abcde"))))

	treeID, err := s.Put(ctx, n)
	require.NoError(t, err)

	got, err := s.Get(ctx, treeID)
	require.NoError(t, err)
	assert.Equal(t, n.Count, got.Count)
	assert.Equal(t, n.TotalSize, got.TotalSize)
	require.Equal(t, 1, got.DirectCount())
	assert.Equal(t, []byte("k"), got.Children[0].LocalKey)
}

func TestStoreUnwriteDropsFromCommit(t *testing.T) {
	ctx := context.Background()
	p := provider.New(storage.NewMemoryBlobStore(), storage.NewMemoryAliasStore(), provider.DefaultConfig())
	s := NewStore(p)

	treeID, err := s.Put(ctx, Empty())
	require.NoError(t, err)
	s.Unwrite(treeID)

	referenced := p.Referenced()
	for _, r := range referenced {
		assert.False(t, r.Equal(treeID))
	}
}
