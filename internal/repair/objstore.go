package repair

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// ObjectStore writes generated document binaries under deterministic paths
// and resolves them to retrievable URLs. Rendering and encoding of the
// binaries happen upstream; the core only stores and references them.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// ObjectPath builds the deterministic storage path for a document category
// and ticket (or composite) key.
func ObjectPath(category, key string) string {
	return path.Join(category, key) + ".pdf"
}

// MemoryObjectStore keeps binaries in process; default and test backend.
type MemoryObjectStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{blobs: make(map[string][]byte)}
}

func (s *MemoryObjectStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return s.URL(key), nil
}

func (s *MemoryObjectStore) URL(key string) string { return "mem://" + key }

// Get is used by tests and the document download route.
func (s *MemoryObjectStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b, ok
}

// FSObjectStore persists binaries under a root directory.
type FSObjectStore struct {
	root string
}

func NewFSObjectStore(root string) *FSObjectStore { return &FSObjectStore{root: root} }

func (s *FSObjectStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *FSObjectStore) URL(key string) string { return "file://" + filepath.Join(s.root, key) }
