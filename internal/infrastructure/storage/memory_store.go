package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store for tests and one-shot CLI runs
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Load implements Store
func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// Save implements Store
func (s *MemoryStore) Save(ctx context.Context, blobs []Blob) error {
	if err := validateBlobs(blobs); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range blobs {
		s.blobs[b.Name] = append([]byte(nil), b.Data...)
	}
	return nil
}

// Put overwrites a single blob without validation, for corrupting fixtures
func (s *MemoryStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = data
}

// Ping implements Store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Backend implements Store
func (s *MemoryStore) Backend() string {
	return "memory"
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
