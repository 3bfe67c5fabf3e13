package vector_test

import (
	"context"
	"testing"

	"github.com/efebarandurmaz/agni/internal/kv"
	"github.com/efebarandurmaz/agni/internal/vector"
	"github.com/efebarandurmaz/agni/internal/vector/vectortest"
)

func TestMemoryIndex(t *testing.T) {
	vectortest.Run(t, func(t *testing.T) vector.Index {
		return vector.NewMemoryIndex(vectortest.Dim)
	})
}

func TestLocalIndex(t *testing.T) {
	vectortest.Run(t, func(t *testing.T) vector.Index {
		idx, err := vector.OpenLocal(context.Background(), kv.NewMemory(), vectortest.Dim)
		if err != nil {
			t.Fatalf("OpenLocal: %v", err)
		}
		return idx
	})
}

func TestLocalIndex_ReloadsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store, err := kv.OpenBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer store.Close()

	first, err := vector.OpenLocal(ctx, store, 2)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	for i, id := range []string{"doc_0", "doc_1", "doc_2"} {
		err := first.Upsert(ctx, []string{id}, []string{id}, [][]float32{{1, float32(i)}}, []map[string]string{{"n": id}})
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	reopened, err := vector.OpenLocal(ctx, store, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if n, _ := reopened.Count(ctx); n != 3 {
		t.Fatalf("Count after reopen = %d", n)
	}
	res, err := reopened.Query(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res[0].ID != "doc_0" || res[0].Metadata["n"] != "doc_0" {
		t.Fatalf("unexpected top result %+v", res[0])
	}

	if _, err := vector.OpenLocal(ctx, store, 4); err == nil {
		t.Fatal("expected dimension error when reopening with a different dimension")
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}
	for _, tt := range tests {
		got := vector.CosineDistance(tt.a, tt.b)
		if d := got - tt.want; d > 1e-6 || d < -1e-6 {
			t.Errorf("%s: CosineDistance = %f, want %f", tt.name, got, tt.want)
		}
	}
}
