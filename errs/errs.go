// Package errs collects the sentinel error kinds shared across
// corestore's packages (spec.md §7). Callers compare with errors.Is;
// storage/transport errors are wrapped and surfaced unchanged rather than
// mapped onto one of these sentinels.
package errs

import "errors"

var (
	// ErrNotFound means an identifier, alias, or leaf key is absent.
	ErrNotFound = errors.New("corestore: not found")

	// ErrAliasAlreadyExists means an alias key is already registered
	// against a different identifier.
	ErrAliasAlreadyExists = errors.New("corestore: alias already exists with a different identifier")

	// ErrLeafAlreadyExists means Insert targeted a key that already holds
	// a leaf.
	ErrLeafAlreadyExists = errors.New("corestore: leaf already exists")

	// ErrLeafNotFound means Replace/Remove targeted a key with no leaf.
	ErrLeafNotFound = errors.New("corestore: leaf not found")

	// ErrInvalidIndexKey means a key's length didn't match the indexer's
	// configured IndexKeyLength.
	ErrInvalidIndexKey = errors.New("corestore: invalid index key length")

	// ErrCorruptedTree means a structural invariant of a tree node (or
	// the alias resolution chain) was violated.
	ErrCorruptedTree = errors.New("corestore: corrupted tree")

	// ErrInvalidManifest means a manifest blob failed to decode.
	ErrInvalidManifest = errors.New("corestore: invalid manifest")
)
