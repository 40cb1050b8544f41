package provider

import (
	"context"
	"fmt"
)

// BeginTransaction wraps p as overlay's parent and returns overlay
// (spec.md §4.2 begin_transaction). overlay should be a freshly
// constructed Provider over its own blob/alias stores (memory-backed
// stores are the common case); its refcounts start empty and track only
// writes made through the returned transaction Provider.
func (p *Provider) BeginTransaction(overlay *Provider) *Provider {
	overlay.parent = p
	return overlay
}

// CommitTransaction copies every identifier in the top Provider's
// Referenced() set to its parent (see CopyTo), then returns the parent.
// On any copy failure it still returns the parent, together with the
// first error encountered, so the caller can decide whether to continue
// with the partially-copied parent or abort outright (spec.md §4.2/§7).
func (p *Provider) CommitTransaction(ctx context.Context) (*Provider, error) {
	if p.parent == nil {
		return nil, fmt.Errorf("provider: commit transaction: no parent to commit into")
	}
	referenced := p.Referenced()
	if err := p.copyAllTo(ctx, referenced, p.parent); err != nil {
		return p.parent, err
	}
	return p.parent, nil
}

// AbortTransaction discards p and returns its parent. Any blobs or nodes
// written to p are simply left behind; because storage is
// content-addressed and immutable, an orphaned write is harmless (spec.md
// §5 "Cancellation").
func (p *Provider) AbortTransaction() *Provider {
	return p.parent
}
