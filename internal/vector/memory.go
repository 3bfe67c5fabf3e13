package vector

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	id        string
	text      string
	embedding []float32
	metadata  map[string]string
}

// MemoryIndex is a brute-force cosine index over an insertion-ordered slice.
// One writer and many readers may use it concurrently.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []entry
	ids     map[string]struct{}
}

// NewMemoryIndex returns an empty index of dimension dim.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, ids: make(map[string]struct{})}
}

func (m *MemoryIndex) Dimension() int { return m.dim }

func (m *MemoryIndex) Upsert(ctx context.Context, ids, texts []string, embeddings [][]float32, metadatas []map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(ids, texts, embeddings, metadatas); err != nil {
		return err
	}
	m.insertLocked(ids, texts, embeddings, metadatas)
	return nil
}

func (m *MemoryIndex) checkLocked(ids, texts []string, embeddings [][]float32, metadatas []map[string]string) error {
	return CheckUpsert(m.dim, ids, texts, embeddings, metadatas, func(id string) bool {
		_, ok := m.ids[id]
		return ok
	})
}

func (m *MemoryIndex) insertLocked(ids, texts []string, embeddings [][]float32, metadatas []map[string]string) {
	for i, id := range ids {
		m.entries = append(m.entries, entry{
			id:        id,
			text:      texts[i],
			embedding: append([]float32(nil), embeddings[i]...),
			metadata:  copyMeta(metadatas[i]),
		})
		m.ids[id] = struct{}{}
	}
}

func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := CheckQuery(m.dim, len(m.entries), embedding, k); err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = SearchResult{
			ID:       e.id,
			Document: e.text,
			Distance: CosineDistance(embedding, e.embedding),
			Metadata: e.metadata,
		}
	}
	// Stable keeps insertion order among equal distances.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	if k > len(results) {
		k = len(results)
	}
	out := results[:k]
	for i := range out {
		out[i].Metadata = copyMeta(out[i].Metadata)
	}
	return out, nil
}

func (m *MemoryIndex) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryIndex) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.ids = make(map[string]struct{})
	return nil
}

func (m *MemoryIndex) Close() error { return nil }

var _ Index = (*MemoryIndex)(nil)
