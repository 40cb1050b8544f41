package provider

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dolthub/corestore/id"
)

// copyConcurrency bounds how many identifiers CopyTo/copyAllTo fan out
// over at once, so a manifest with millions of entries cannot spawn an
// unbounded number of goroutines (spec.md §4.2 "copies are parallel where
// possible" does not mean unboundedly parallel).
const copyConcurrency = 32

// copyAllTo copies every identifier in ids from p to target, scattering
// across a bounded pool and cancelling the remaining work on the first
// error (spec.md §9 "first-error cancels remaining").
func (p *Provider) copyAllTo(ctx context.Context, ids []id.Identifier, target *Provider) error {
	sem := semaphore.NewWeighted(copyConcurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, theID := range ids {
		theID := theID
		if err := sem.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			return p.CopyTo(egCtx, theID, target)
		})
	}
	return eg.Wait()
}

// CopyTo copies the storage backing theID from p to target (spec.md §4.2
// copy_to). A ManifestRef's referenced chunks are always copied before
// its own manifest blob, so a target never observes a ManifestRef whose
// chunks are partially missing, even if the copy is interrupted partway
// through (spec.md §8 testable property 6).
func (p *Provider) CopyTo(ctx context.Context, theID id.Identifier, target *Provider) error {
	switch theID.Kind() {
	case id.KindData:
		return nil

	case id.KindHashRef:
		h, size, _ := theID.AsHashRef()
		ok, err := target.blobs.Exists(ctx, h)
		if err != nil {
			return fmt.Errorf("provider: copy hashref: %w", err)
		}
		if ok {
			return nil
		}

		src, err := p.getBlobReader(ctx, h)
		if err != nil {
			return fmt.Errorf("provider: copy hashref: open source: %w", err)
		}
		if closer, ok := src.(io.Closer); ok {
			defer closer.Close()
		}

		dst, err := target.blobs.GetWriter(ctx, h, size)
		if err != nil {
			return fmt.Errorf("provider: copy hashref: open target: %w", err)
		}

		buf := make([]byte, p.cfg.Limits.ChunkSize)
		if _, err := io.CopyBuffer(dst, src, buf); err != nil {
			_ = dst.Close()
			return fmt.Errorf("provider: copy hashref: stream: %w", err)
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("provider: copy hashref: commit target: %w", err)
		}
		return nil

	case id.KindManifestRef:
		_, manifestBlobID, _ := theID.AsManifestRef()
		manifestBytes, err := p.readDepth(ctx, manifestBlobID, 0)
		if err != nil {
			return fmt.Errorf("provider: copy manifest: read manifest: %w", err)
		}
		childIDs, err := id.DecodeManifest(manifestBytes)
		if err != nil {
			return err
		}
		if err := p.copyAllTo(ctx, childIDs, target); err != nil {
			return fmt.Errorf("provider: copy manifest chunks: %w", err)
		}
		// The manifest blob itself is copied last, only once every
		// chunk it references is already present at target.
		return p.CopyTo(ctx, manifestBlobID, target)

	case id.KindAlias:
		key, _ := theID.AsAlias()
		resolved, err := p.ResolveAlias(ctx, key)
		if err != nil {
			return fmt.Errorf("provider: copy alias: resolve: %w", err)
		}
		if err := p.CopyTo(ctx, resolved, target); err != nil {
			return fmt.Errorf("provider: copy alias: %w", err)
		}
		if _, err := target.RegisterAlias(ctx, key, resolved); err != nil {
			return fmt.Errorf("provider: copy alias: register: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("provider: copy: unknown identifier kind %v", theID.Kind())
	}
}
