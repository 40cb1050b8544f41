// Package storage provides concrete BlobStore/AliasStore backends: an
// in-memory pair for tests and transaction overlays, and a file-backed
// pair for durable storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/hash"
)

// MemoryBlobStore is an in-memory chunks.BlobStore, suitable for tests
// and as the overlay layer of a transaction.
type MemoryBlobStore struct {
	mu   sync.RWMutex
	data map[hash.Hash][]byte
}

// NewMemoryBlobStore constructs an empty MemoryBlobStore.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{data: make(map[hash.Hash][]byte)}
}

func (s *MemoryBlobStore) Put(_ context.Context, h hash.Hash, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[h]; ok {
		// idempotent: identical hash implies identical content under a
		// collision-resistant digest.
		_ = existing
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[h] = cp
	return nil
}

func (s *MemoryBlobStore) Get(_ context.Context, h hash.Hash) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[h]
	if !ok {
		return nil, fmt.Errorf("storage: get %s: %w", h, errs.ErrNotFound)
	}
	return data, nil
}

func (s *MemoryBlobStore) Exists(_ context.Context, h hash.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[h]
	return ok, nil
}

func (s *MemoryBlobStore) GetReader(_ context.Context, h hash.Hash) (io.ReadCloser, uint64, error) {
	s.mu.RLock()
	data, ok := s.data[h]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("storage: get reader %s: %w", h, errs.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), uint64(len(data)), nil
}

func (s *MemoryBlobStore) GetWriter(_ context.Context, h hash.Hash, size uint64) (io.WriteCloser, error) {
	return &memoryBlobWriter{store: s, h: h, buf: make([]byte, 0, size)}, nil
}

type memoryBlobWriter struct {
	store *MemoryBlobStore
	h     hash.Hash
	buf   []byte
}

func (w *memoryBlobWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memoryBlobWriter) Close() error {
	return w.store.Put(context.Background(), w.h, w.buf)
}

// MemoryAliasStore is an in-memory chunks.AliasStore.
type MemoryAliasStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryAliasStore constructs an empty MemoryAliasStore.
func NewMemoryAliasStore() *MemoryAliasStore {
	return &MemoryAliasStore{data: make(map[string][]byte)}
}

func (s *MemoryAliasStore) Register(_ context.Context, key []byte, id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[string(key)]; ok {
		if bytes.Equal(existing, id) {
			return nil
		}
		return fmt.Errorf("storage: register alias %q: %w", key, errs.ErrAliasAlreadyExists)
	}
	cp := make([]byte, len(id))
	copy(cp, id)
	s.data[string(key)] = cp
	return nil
}

func (s *MemoryAliasStore) Resolve(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("storage: resolve alias %q: %w", key, errs.ErrNotFound)
	}
	return id, nil
}

func (s *MemoryAliasStore) List(_ context.Context) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, len(s.data))
	for k := range s.data {
		out = append(out, []byte(k))
	}
	return out, nil
}
