// Package vectortest holds the behavioural contract every vector.Index
// backend must satisfy. Backend tests call Run with a constructor.
package vectortest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/efebarandurmaz/agni/internal/vector"
)

// Dim is the dimension indexes passed to Run must be created with.
const Dim = 3

// Run exercises idx-agnostic behaviour. newIndex must return an empty index
// of dimension Dim.
func Run(t *testing.T, newIndex func(t *testing.T) vector.Index) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty index", func(t *testing.T) {
		idx := newIndex(t)
		if n, err := idx.Count(ctx); err != nil || n != 0 {
			t.Fatalf("Count = %d, %v; want 0", n, err)
		}
		if _, err := idx.Query(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, vector.ErrEmptyIndex) {
			t.Fatalf("expected ErrEmptyIndex, got %v", err)
		}
	})

	t.Run("ordering and k", func(t *testing.T) {
		idx := newIndex(t)
		mustUpsert(t, idx, map[int][]float32{
			0: {1, 0, 0},
			1: {0, 1, 0},
			2: {0.9, 0.1, 0},
			3: {-1, 0, 0},
		})

		res, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(res) != 3 {
			t.Fatalf("expected 3 results, got %d", len(res))
		}
		want := []string{"doc_0", "doc_2", "doc_1"}
		for i, r := range res {
			if r.ID != want[i] {
				t.Errorf("result %d = %s, want %s", i, r.ID, want[i])
			}
			if i > 0 && r.Distance < res[i-1].Distance {
				t.Errorf("distances not ascending: %v", res)
			}
		}
		if res[0].Document != "text 0" || res[0].Metadata["topic"] != "t0" {
			t.Errorf("unexpected payload %+v", res[0])
		}

		res, err = idx.Query(ctx, []float32{1, 0, 0}, 100)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(res) != 4 {
			t.Fatalf("k > count should return count results, got %d", len(res))
		}
		if d := res[3].Distance; d < 1.99 || d > 2.0 {
			t.Errorf("opposite vector distance = %f, want 2", d)
		}
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		idx := newIndex(t)
		mustUpsert(t, idx, map[int][]float32{0: {0, 1, 0}, 1: {0, 0, 1}, 2: {0, 1, 0}})

		res, err := idx.Query(ctx, []float32{0, 1, 0}, 2)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res[0].ID != "doc_0" || res[1].ID != "doc_2" {
			t.Fatalf("tie order = %s, %s; want doc_0, doc_2", res[0].ID, res[1].ID)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		idx := newIndex(t)
		mustUpsert(t, idx, map[int][]float32{0: {1, 0, 0}})

		if _, err := idx.Query(ctx, []float32{1, 0, 0}, 0); !errors.Is(err, vector.ErrInvalidK) {
			t.Errorf("k=0: expected ErrInvalidK, got %v", err)
		}
		if _, err := idx.Query(ctx, []float32{1, 0}, 1); !errors.Is(err, vector.ErrDimensionMismatch) {
			t.Errorf("short query: expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("rejected batches write nothing", func(t *testing.T) {
		idx := newIndex(t)
		mustUpsert(t, idx, map[int][]float32{0: {1, 0, 0}})

		cases := []struct {
			name  string
			ids   []string
			texts []string
			embs  [][]float32
			metas []map[string]string
			want  error
		}{
			{"shape", []string{"a", "b"}, []string{"a"}, [][]float32{{1, 0, 0}, {0, 1, 0}}, []map[string]string{{}, {}}, vector.ErrShapeMismatch},
			{"dup in batch", []string{"a", "a"}, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}, []map[string]string{{}, {}}, vector.ErrDuplicateID},
			{"dup existing", []string{"b", "doc_0"}, []string{"b", "c"}, [][]float32{{1, 0, 0}, {0, 1, 0}}, []map[string]string{{}, {}}, vector.ErrDuplicateID},
			{"dimension", []string{"c", "d"}, []string{"c", "d"}, [][]float32{{1, 0, 0}, {0, 1}}, []map[string]string{{}, {}}, vector.ErrDimensionMismatch},
		}
		for _, c := range cases {
			if err := idx.Upsert(ctx, c.ids, c.texts, c.embs, c.metas); !errors.Is(err, c.want) {
				t.Errorf("%s: expected %v, got %v", c.name, c.want, err)
			}
		}
		if n, _ := idx.Count(ctx); n != 1 {
			t.Fatalf("Count after rejected batches = %d, want 1", n)
		}
	})

	t.Run("clear", func(t *testing.T) {
		idx := newIndex(t)
		mustUpsert(t, idx, map[int][]float32{0: {1, 0, 0}, 1: {0, 1, 0}})
		if err := idx.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if n, _ := idx.Count(ctx); n != 0 {
			t.Fatalf("Count after Clear = %d", n)
		}
		mustUpsert(t, idx, map[int][]float32{0: {0, 0, 1}})
		if n, _ := idx.Count(ctx); n != 1 {
			t.Fatalf("Count after reload = %d", n)
		}
	})
}

// mustUpsert inserts doc_<i> for each ordinal in ascending order.
func mustUpsert(t *testing.T, idx vector.Index, vecs map[int][]float32) {
	t.Helper()
	var ids, texts []string
	var embs [][]float32
	var metas []map[string]string
	for i := 0; i < len(vecs); i++ {
		ids = append(ids, fmt.Sprintf("doc_%d", i))
		texts = append(texts, fmt.Sprintf("text %d", i))
		embs = append(embs, vecs[i])
		metas = append(metas, map[string]string{"topic": fmt.Sprintf("t%d", i)})
	}
	if err := idx.Upsert(context.Background(), ids, texts, embs, metas); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

// RunShared checks backends whose storage outlives a handle. open must
// return a new handle on the same, initially empty, storage each call.
func RunShared(t *testing.T, open func(t *testing.T) vector.Index) {
	t.Helper()
	ctx := context.Background()

	writer, reader := open(t), open(t)
	mustUpsert(t, writer, map[int][]float32{0: {1, 0, 0}, 1: {0, 1, 0}})

	if n, err := reader.Count(ctx); err != nil || n != 2 {
		t.Fatalf("reader Count after write = %d, %v; want 2", n, err)
	}

	if err := writer.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, err := reader.Count(ctx); err != nil || n != 0 {
		t.Fatalf("reader Count after clear = %d, %v; want 0", n, err)
	}
	if _, err := reader.Query(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, vector.ErrEmptyIndex) {
		t.Fatalf("reader Query after clear: expected ErrEmptyIndex, got %v", err)
	}
}
