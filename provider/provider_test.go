package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/id"
	"github.com/dolthub/corestore/storage"
)

func newTestProvider(t *testing.T, limits id.Limits) *Provider {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Limits = limits
	return New(storage.NewMemoryBlobStore(), storage.NewMemoryAliasStore(), cfg)
}

// Scenario 1 (spec.md §8): small-content identity.
func TestWriteReadSmallContent(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.DefaultLimits)

	payload := bytes.Repeat([]byte{0x41}, 32)
	theID, err := p.Write(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, id.KindData, theID.Kind())

	got, err := p.Read(ctx, theID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// Scenario 2 (spec.md §8): medium blob round trip, chunk_size=1024.
func TestWriteReadMediumBlob(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.Limits{ChunkSize: 1024, SmallLimit: 255})

	payload := bytes.Repeat([]byte{0x41}, 1024)
	theID, err := p.Write(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, id.KindHashRef, theID.Kind())

	got, err := p.Read(ctx, theID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	again := id.ComputeID(payload, p.Limits())
	assert.True(t, theID.Equal(again))
}

// Scenario 3 (spec.md §8): large payload manifest, chunk_size=1024.
func TestWriteReadLargeManifest(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.Limits{ChunkSize: 1024, SmallLimit: 255})

	payload := bytes.Repeat([]byte{0x41}, 2064)
	theID, err := p.Write(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, id.KindManifestRef, theID.Kind())

	got, err := p.Read(ctx, theID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	size, err := p.ReadSize(ctx, theID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2064), size)
}

func TestGetReaderMatchesRead(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.Limits{ChunkSize: 100, SmallLimit: 10})

	payload := bytes.Repeat([]byte("abcdefghij"), 35) // 350 bytes, > chunk size
	theID, err := p.Write(ctx, payload)
	require.NoError(t, err)

	r, err := p.GetReader(ctx, theID)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), r.Size())
	assert.True(t, theID.Equal(r.Origin()))

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestGetReaderWithRepeatedChunks(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.Limits{ChunkSize: 8, SmallLimit: 4})

	// 40 repeats of an 8-byte pattern: every chunk is identical, so the
	// manifest references the same HashRef many times over.
	payload := bytes.Repeat([]byte("repeatXX"), 40)
	theID, err := p.Write(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, id.KindManifestRef, theID.Kind())

	r, err := p.GetReader(ctx, theID)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteAliasResolveRead(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.DefaultLimits)

	payload := []byte("hello alias")
	theID, err := p.WriteAlias(ctx, []byte("my-key"), payload)
	require.NoError(t, err)

	resolved, err := p.ResolveAlias(ctx, []byte("my-key"))
	require.NoError(t, err)
	assert.True(t, theID.Equal(resolved))

	got, err := p.Read(ctx, id.NewAlias([]byte("my-key")))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRegisterAliasIdempotentAndConflict(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.DefaultLimits)

	theID, err := p.Write(ctx, []byte("payload one"))
	require.NoError(t, err)
	other, err := p.Write(ctx, []byte("payload two, different"))
	require.NoError(t, err)

	_, err = p.RegisterAlias(ctx, []byte("k"), theID)
	require.NoError(t, err)

	// idempotent re-register with the same id
	_, err = p.RegisterAlias(ctx, []byte("k"), theID)
	require.NoError(t, err)

	// conflicting re-register fails
	_, err = p.RegisterAlias(ctx, []byte("k"), other)
	assert.True(t, errors.Is(err, errs.ErrAliasAlreadyExists))
}

func TestUnwrittenIdentifierNotFound(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.DefaultLimits)

	_, err := p.Read(ctx, id.NewHashRef([32]byte{1}, 10))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

// Scenario 5 (spec.md §8 round-trip laws): transaction reads fall
// through to parent.
func TestTransactionReadFallsThroughToParent(t *testing.T) {
	ctx := context.Background()
	parent := newTestProvider(t, id.DefaultLimits)

	parentID, err := parent.Write(ctx, []byte("parent payload"))
	require.NoError(t, err)

	overlay := newTestProvider(t, id.DefaultLimits)
	txn := parent.BeginTransaction(overlay)

	got, err := txn.Read(ctx, parentID)
	require.NoError(t, err)
	assert.Equal(t, "parent payload", string(got))

	childID, err := txn.Write(ctx, []byte("child payload"))
	require.NoError(t, err)
	got, err = txn.Read(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, "child payload", string(got))

	// Not visible in parent yet.
	_, err = parent.Read(ctx, childID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

// Scenario 6 (spec.md §8): transactional commit copies only live
// identifiers.
func TestCommitTransactionCopiesOnlyLiveIdentifiers(t *testing.T) {
	ctx := context.Background()
	parent := newTestProvider(t, id.Limits{ChunkSize: 1024, SmallLimit: 8})
	overlay := newTestProvider(t, parent.Limits())
	txn := parent.BeginTransaction(overlay)

	smallID, err := txn.Write(ctx, []byte("tiny"))
	require.NoError(t, err)

	hashRefID, err := txn.Write(ctx, bytes.Repeat([]byte{0x42}, 100))
	require.NoError(t, err)

	manifestID, err := txn.Write(ctx, bytes.Repeat([]byte{0x43}, 5000))
	require.NoError(t, err)

	aliasID, err := txn.WriteAlias(ctx, []byte("a"), []byte("alias payload"))
	require.NoError(t, err)

	// an unwritten duplicate write: write then unwrite, must not commit.
	droppedID, err := txn.Write(ctx, bytes.Repeat([]byte{0x99}, 50))
	require.NoError(t, err)
	txn.Unwrite(droppedID)

	// also unwrite the hashRef entry directly.
	txn.Unwrite(hashRefID)

	newParent, err := txn.CommitTransaction(ctx)
	require.NoError(t, err)
	assert.Same(t, parent, newParent)

	for _, wantID := range []idIdentifier{
		{smallID, "tiny"},
		{manifestID, string(bytes.Repeat([]byte{0x43}, 5000))},
		{aliasID, "alias payload"},
	} {
		got, err := newParent.Read(ctx, wantID.id)
		require.NoError(t, err, "expected %v to be committed", wantID.id.Kind())
		assert.Equal(t, wantID.want, string(got))
	}

	// the unwritten hashRef must not have been copied.
	_, err = newParent.Read(ctx, hashRefID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	// the dropped duplicate write also must not have been copied.
	_, err = newParent.Read(ctx, droppedID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

type idIdentifier struct {
	id   id.Identifier
	want string
}

func TestAbortTransactionDiscardsOverlay(t *testing.T) {
	ctx := context.Background()
	parent := newTestProvider(t, id.DefaultLimits)
	overlay := newTestProvider(t, parent.Limits())
	txn := parent.BeginTransaction(overlay)

	childID, err := txn.Write(ctx, []byte("speculative"))
	require.NoError(t, err)

	back := txn.AbortTransaction()
	assert.Same(t, parent, back)

	_, err = back.Read(ctx, childID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestCopyToManifestCopiesChunksBeforeManifest(t *testing.T) {
	ctx := context.Background()
	src := newTestProvider(t, id.Limits{ChunkSize: 16, SmallLimit: 4})
	dst := newTestProvider(t, src.Limits())

	payload := bytes.Repeat([]byte("0123456789abcdef"), 10) // 160 bytes
	theID, err := src.Write(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, id.KindManifestRef, theID.Kind())

	require.NoError(t, src.CopyTo(ctx, theID, dst))

	got, err := dst.Read(ctx, theID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestExistsRecursesThroughManifestAndAlias(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, id.Limits{ChunkSize: 8, SmallLimit: 4})

	theID, err := p.WriteAlias(ctx, []byte("k"), bytes.Repeat([]byte{1}, 100))
	require.NoError(t, err)
	_ = theID

	ok, err := p.Exists(ctx, id.NewAlias([]byte("k")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(ctx, id.NewAlias([]byte("missing")))
	require.NoError(t, err)
	assert.False(t, ok)
}
