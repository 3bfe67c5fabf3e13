package kv

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key.String()] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := string(prefix.prefixBytes())
	m.mu.RLock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: parseKey([]byte(k)), Value: append([]byte(nil), m.data[k]...)}
	}
	m.mu.RUnlock()

	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[e.Key.String()] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix Key) error {
	p := string(prefix.prefixBytes())
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
