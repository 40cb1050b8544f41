package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/dolthub/corestore/errs"
	"github.com/dolthub/corestore/hash"
)

// FileBlobStore is a durable, directory-backed chunks.BlobStore. Blobs
// are written with a write-to-temp-then-rename sequence (the temp name
// carries a uuid so concurrent writers of different hashes never
// collide) and compressed at rest with snappy; compression is an
// internal detail of this one backend and never changes the canonical
// bytes a caller reads back (spec.md §1 non-goals: no on-disk encoding
// beyond the abstract wire format is exposed to callers).
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore returns a FileBlobStore rooted at dir, which must
// already exist.
func NewFileBlobStore(dir string) *FileBlobStore {
	return &FileBlobStore{dir: dir}
}

func (s *FileBlobStore) path(h hash.Hash) string {
	name := h.String()
	return filepath.Join(s.dir, name[:2], name)
}

func (s *FileBlobStore) Put(_ context.Context, h hash.Hash, data []byte) error {
	dst := s.path(h)
	if _, err := os.Stat(dst); err == nil {
		return nil // idempotent
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: put %s: mkdir: %w", h, err)
	}

	tmp := filepath.Join(filepath.Dir(dst), ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, snappy.Encode(nil, data), 0o644); err != nil {
		return fmt.Errorf("storage: put %s: write temp: %w", h, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: put %s: rename: %w", h, err)
	}
	return nil
}

func (s *FileBlobStore) Get(_ context.Context, h hash.Hash) ([]byte, error) {
	compressed, err := os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: get %s: %w", h, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", h, err)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: decompress: %w", h, err)
	}
	return data, nil
}

func (s *FileBlobStore) Exists(_ context.Context, h hash.Hash) (bool, error) {
	_, err := os.Stat(s.path(h))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileBlobStore) GetReader(ctx context.Context, h hash.Hash) (io.ReadCloser, uint64, error) {
	data, err := s.Get(ctx, h)
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewReader(data)), uint64(len(data)), nil
}

func (s *FileBlobStore) GetWriter(_ context.Context, h hash.Hash, size uint64) (io.WriteCloser, error) {
	return &fileBlobWriter{store: s, h: h, buf: make([]byte, 0, size)}, nil
}

type fileBlobWriter struct {
	store *FileBlobStore
	h     hash.Hash
	buf   []byte
}

func (w *fileBlobWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *fileBlobWriter) Close() error {
	return w.store.Put(context.Background(), w.h, w.buf)
}

// FileAliasStore is a durable, single-file chunks.AliasStore: the whole
// key -> identifier map is kept in memory and flushed to a JSON file on
// every mutating call, which is simple and correct at the modest scale a
// CLI demo needs (spec.md §1 excludes concurrent writers across
// processes, so a read-modify-write-whole-file strategy is sufficient).
type FileAliasStore struct {
	path string

	mu   sync.Mutex
	data map[string][]byte
}

// NewFileAliasStore opens (or creates) the alias map persisted at path.
func NewFileAliasStore(path string) (*FileAliasStore, error) {
	s := &FileAliasStore{path: path, data: make(map[string][]byte)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("storage: open alias file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	encoded := make(map[string]string)
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("storage: parse alias file %s: %w", path, err)
	}
	for k, v := range encoded {
		decoded, err := decodeAliasValue(v)
		if err != nil {
			return nil, fmt.Errorf("storage: parse alias file %s: %w", path, err)
		}
		s.data[k] = decoded
	}
	return s, nil
}

func (s *FileAliasStore) flushLocked() error {
	encoded := make(map[string]string, len(s.data))
	for k, v := range s.data {
		encoded[k] = encodeAliasValue(v)
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("storage: encode alias file %s: %w", s.path, err)
	}
	tmp := s.path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write alias file %s: %w", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write alias file %s: %w", s.path, err)
	}
	return nil
}

func (s *FileAliasStore) Register(_ context.Context, key []byte, id []byte) error {
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
	return s.flushLocked()
}

func (s *FileAliasStore) Resolve(_ context.Context, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("storage: resolve alias %q: %w", key, errs.ErrNotFound)
	}
	return id, nil
}

func (s *FileAliasStore) List(_ context.Context) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, 0, len(s.data))
	for k := range s.data {
		out = append(out, []byte(k))
	}
	return out, nil
}

func encodeAliasValue(v []byte) string {
	return fmt.Sprintf("%x", v)
}

func decodeAliasValue(v string) ([]byte, error) {
	out := make([]byte, len(v)/2)
	_, err := fmt.Sscanf(v, "%x", &out)
	return out, err
}
