package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
)

// MemoryStore keeps objects in process memory. It backs local runs without
// an S3 endpoint and the service tests.
type MemoryStore struct {
	fs      afero.Fs
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore(fs afero.Fs) *MemoryStore {
	return &MemoryStore{fs: fs, objects: make(map[string][]byte)}
}

func (m *MemoryStore) EnsureBucket(context.Context) error { return nil }

func (m *MemoryStore) UploadFile(ctx context.Context, key, path, _ string) error {
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Open(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return &Object{Body: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data))}, nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Len is the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
