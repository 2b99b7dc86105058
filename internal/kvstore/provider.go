// Package kvstore defines the key-value blob persistence that every
// collection (articles, facet library, editions) is stored in: one JSON
// blob per named key, read-modify-write whole values.
package kvstore

import (
	"sort"
	"sync"

	"github.com/inshell/hone/internal/apperr"
)

// Provider is the interface for collection blob operations. Writes to the
// same key from one process are ordered by call order; there is no locking
// across processes (last write wins).
type Provider interface {
	// Get returns the blob stored under key, or apperr.ErrNotFound.
	Get(key string) ([]byte, error)
	// Set atomically replaces the blob stored under key.
	Set(key string, value []byte) error
	// Keys returns every stored key, sorted.
	Keys() ([]string, error)
}

// Memory is a map-backed Provider for tests and ephemeral runs.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Get returns a copy of the stored blob.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob := make([]byte, len(value))
	copy(blob, value)
	m.blobs[key] = blob
	return nil
}

// Keys returns every stored key, sorted.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Verify implementations satisfy Provider at compile time.
var (
	_ Provider = (*Memory)(nil)
	_ Provider = (*FS)(nil)
)
