package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local backend for tests and single-instance development.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

// Store returns the namespace ns.
func (m *Memory) Store(ns string) Store {
	return namespace{kv: m, name: ns}
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) get(ctx context.Context, ns, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[ns][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) set(ctx context.Context, ns, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string][]byte)
		m.data[ns] = bucket
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	bucket[key] = stored
	return nil
}

func (m *Memory) list(ctx context.Context, ns string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data[ns]))
	for k := range m.data[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
