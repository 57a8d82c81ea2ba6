package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemStore is an in-memory Store used by tests and the ephemeral dev mode.
// Update marshals every value before touching the map, so a bad value
// leaves the store unchanged.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]json.RawMessage)}
}

func (m *MemStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[path]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", path, ErrPathNotFound)
	}
	return v, nil
}

func (m *MemStore) Set(_ context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = raw
	return nil
}

func (m *MemStore) Update(_ context.Context, values map[string]any) error {
	marshaled := make(map[string]json.RawMessage, len(values))
	deletes := make([]string, 0)
	for path, value := range values {
		if value == nil {
			deletes = append(deletes, path)
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %q: %w", path, err)
		}
		marshaled[path] = raw
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range deletes {
		m.deleteSubtreeLocked(path)
	}
	for path, raw := range marshaled {
		m.entries[path] = raw
	}
	return nil
}

func (m *MemStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteSubtreeLocked(path)
	return nil
}

func (m *MemStore) deleteSubtreeLocked(path string) {
	delete(m.entries, path)
	prefix := path + "/"
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

func (m *MemStore) List(_ context.Context, prefix string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	children := make(map[string]json.RawMessage)
	p := prefix + "/"
	for k, v := range m.entries {
		if !strings.HasPrefix(k, p) {
			continue
		}
		rest := k[len(p):]
		if strings.Contains(rest, "/") {
			continue
		}
		children[rest] = v
	}
	return children, nil
}

func (m *MemStore) Ping() error { return nil }

func (m *MemStore) Close() error { return nil }
