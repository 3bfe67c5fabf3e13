package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/efebarandurmaz/agni/internal/kv"
)

var docPrefix = kv.Key{"doc"}

type record struct {
	ID        string            `msgpack:"id"`
	Document  string            `msgpack:"document"`
	Metadata  map[string]string `msgpack:"metadata"`
	Embedding []float32         `msgpack:"embedding"`
}

// LocalIndex is a MemoryIndex mirrored write-through into a kv store, so
// the collection survives restarts. Records are keyed by insertion
// sequence and reloaded in that order.
type LocalIndex struct {
	writeMu sync.Mutex
	mem     *MemoryIndex
	store   kv.Store
}

// OpenLocal loads any persisted documents from store into memory.
func OpenLocal(ctx context.Context, store kv.Store, dim int) (*LocalIndex, error) {
	idx := &LocalIndex{mem: NewMemoryIndex(dim), store: store}

	var ids, texts []string
	var embs [][]float32
	var metas []map[string]string
	for e, err := range store.List(ctx, docPrefix) {
		if err != nil {
			return nil, fmt.Errorf("loading local index: %w", err)
		}
		var r record
		if err := msgpack.Unmarshal(e.Value, &r); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", e.Key, err)
		}
		if len(r.Embedding) != dim {
			return nil, fmt.Errorf("%w: stored document %q has %d dimensions, configured %d (rebuild the index)",
				ErrDimensionMismatch, r.ID, len(r.Embedding), dim)
		}
		ids = append(ids, r.ID)
		texts = append(texts, r.Document)
		embs = append(embs, r.Embedding)
		metas = append(metas, r.Metadata)
	}
	if len(ids) > 0 {
		if err := idx.mem.Upsert(ctx, ids, texts, embs, metas); err != nil {
			return nil, fmt.Errorf("restoring local index: %w", err)
		}
	}
	return idx, nil
}

func seqKey(seq int) kv.Key {
	return kv.Key{"doc", fmt.Sprintf("%010d", seq)}
}

func (l *LocalIndex) Dimension() int { return l.mem.Dimension() }

func (l *LocalIndex) Upsert(ctx context.Context, ids, texts []string, embeddings [][]float32, metadatas []map[string]string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mem.mu.RLock()
	err := l.mem.checkLocked(ids, texts, embeddings, metadatas)
	base := len(l.mem.entries)
	l.mem.mu.RUnlock()
	if err != nil {
		return err
	}

	entries := make([]kv.Entry, len(ids))
	for i, id := range ids {
		raw, err := msgpack.Marshal(record{
			ID:        id,
			Document:  texts[i],
			Metadata:  metadatas[i],
			Embedding: embeddings[i],
		})
		if err != nil {
			return fmt.Errorf("encoding %q: %w", id, err)
		}
		entries[i] = kv.Entry{Key: seqKey(base + i), Value: raw}
	}
	if err := l.store.BatchSet(ctx, entries); err != nil {
		return fmt.Errorf("persisting batch: %w", err)
	}

	l.mem.mu.Lock()
	l.mem.insertLocked(ids, texts, embeddings, metadatas)
	l.mem.mu.Unlock()
	return nil
}

func (l *LocalIndex) Query(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	return l.mem.Query(ctx, embedding, k)
}

func (l *LocalIndex) Count(ctx context.Context) (int, error) {
	return l.mem.Count(ctx)
}

func (l *LocalIndex) Clear(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.store.DeletePrefix(ctx, docPrefix); err != nil {
		return fmt.Errorf("clearing local index: %w", err)
	}
	return l.mem.Clear(ctx)
}

// Close does not close the underlying store; its owner does.
func (l *LocalIndex) Close() error { return nil }

var _ Index = (*LocalIndex)(nil)
