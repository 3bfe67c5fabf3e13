package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/agni/internal/embedding"
	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/vector"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(c.Documents) != 36 {
		t.Errorf("documents = %d, want 36", len(c.Documents))
	}
	if len(c.Foods) != 3 {
		t.Errorf("foods = %d, want 3", len(c.Foods))
	}
	for i, d := range c.Documents {
		if embedding.EstimateTokens(d.Text) > embedding.DefaultMaxTokens {
			t.Errorf("document %d exceeds the embedding token limit", i)
		}
	}
	if c.Foods[0].Name != "Bitter Melon" || len(c.Foods[0].Conditions) == 0 {
		t.Errorf("unexpected first food: %+v", c.Foods[0])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad version", "version: 2\ndocuments: []\n", "version 2"},
		{"empty text", "version: 1\ndocuments:\n  - text: \" \"\n    category: diet\n", "empty text"},
		{"missing category", "version: 1\ndocuments:\n  - text: x\n", "missing category"},
		{"food without name", "version: 1\nfoods:\n  - taste: bitter\n", "missing name"},
		{"not yaml", "version: [", "parse corpus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDocumentMetadata(t *testing.T) {
	d := Document{Text: "x", Category: "diet", Dosha: "vata"}
	m := d.Metadata()
	if len(m) != 2 || m["category"] != "diet" || m["dosha"] != "vata" {
		t.Errorf("Metadata() = %v", m)
	}
	if _, ok := m["topic"]; ok {
		t.Error("empty topic should be omitted")
	}
}

func testCorpus(n int) *Corpus {
	c := &Corpus{Version: Version}
	for i := 0; i < n; i++ {
		c.Documents = append(c.Documents, Document{
			Text:     strings.Repeat("word ", i+1) + "passage",
			Category: "test",
		})
	}
	return c
}

func TestLoader_LoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(32)
	metrics := observability.NewMetrics(nil)
	l := NewLoader(idx, embedding.NewHashModel(32, 0), testCorpus(23), LoaderConfig{
		BatchSize: 10,
		Backend:   "memory",
		Metrics:   metrics,
	})

	report, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if report.Loaded != 23 || report.Batches != 3 || report.Documents != 23 || report.Skipped {
		t.Errorf("unexpected first report: %+v", report)
	}
	if got := testutil.ToFloat64(metrics.IndexDocuments); got != 23 {
		t.Errorf("index gauge = %v, want 23", got)
	}

	report, err = l.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !report.Skipped || report.Loaded != 0 {
		t.Errorf("second load should be skipped: %+v", report)
	}
	if n, _ := idx.Count(ctx); n != 23 {
		t.Errorf("count after second load = %d, want 23", n)
	}
}

func TestLoader_GlobalOrdinalIDs(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(16)
	model := embedding.NewHashModel(16, 0)
	c := testCorpus(5)
	if _, err := NewLoader(idx, model, c, LoaderConfig{BatchSize: 2}).Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The last document sits in the third batch but keeps its corpus ordinal.
	q, _ := model.Embed(ctx, []string{c.Documents[4].Text})
	res, err := idx.Query(ctx, q[0], 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res[0].ID != "doc_4" {
		t.Errorf("ID = %q, want doc_4", res[0].ID)
	}
	if res[0].Metadata["category"] != "test" {
		t.Errorf("metadata = %v", res[0].Metadata)
	}
}

func TestLoader_Rebuild(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(16)
	l := NewLoader(idx, embedding.NewHashModel(16, 0), testCorpus(4), LoaderConfig{})

	if _, err := l.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	report, err := l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Skipped || report.Loaded != 4 || report.Documents != 4 {
		t.Errorf("unexpected rebuild report: %+v", report)
	}
}

type failingModel struct{ embedding.Model }

func (failingModel) Embed(context.Context, []string) ([][]float32, error) {
	return nil, embedding.ErrEmbedding
}

func TestLoader_EmbedErrorLeavesIndexEmpty(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(16)
	l := NewLoader(idx, failingModel{embedding.NewHashModel(16, 0)}, testCorpus(3), LoaderConfig{})

	_, err := l.Load(ctx)
	if !errors.Is(err, embedding.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

// flakyModel fails its failOn-th Embed call.
type flakyModel struct {
	embedding.Model
	calls, failOn int
}

func (m *flakyModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.calls == m.failOn {
		return nil, errors.New("provider down")
	}
	return m.Model.Embed(ctx, texts)
}

func TestLoader_LaterEmbedFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(16)
	model := &flakyModel{Model: embedding.NewHashModel(16, 0), failOn: 2}
	l := NewLoader(idx, model, testCorpus(23), LoaderConfig{BatchSize: 10})

	if _, err := l.Load(ctx); err == nil || !strings.Contains(err.Error(), "provider down") {
		t.Fatalf("expected embed failure, got %v", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Fatalf("count after failed load = %d, want 0", n)
	}

	report, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("retry Load: %v", err)
	}
	if report.Skipped || report.Documents != 23 {
		t.Errorf("retry should load everything: %+v", report)
	}
}

// flakyIndex fails its failOn-th Upsert call.
type flakyIndex struct {
	*vector.MemoryIndex
	calls, failOn int
}

func (f *flakyIndex) Upsert(ctx context.Context, ids, texts []string, embs [][]float32, metas []map[string]string) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("write timeout")
	}
	return f.MemoryIndex.Upsert(ctx, ids, texts, embs, metas)
}

func TestLoader_LaterUpsertFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	idx := &flakyIndex{MemoryIndex: vector.NewMemoryIndex(16), failOn: 3}
	l := NewLoader(idx, embedding.NewHashModel(16, 0), testCorpus(23), LoaderConfig{BatchSize: 10})

	_, err := l.Load(ctx)
	if err == nil || !strings.Contains(err.Error(), "upsert batch 2") {
		t.Fatalf("expected upsert failure on batch 2, got %v", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Fatalf("partial load left %d documents", n)
	}

	report, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("retry Load: %v", err)
	}
	if report.Skipped || report.Documents != 23 {
		t.Errorf("retry should load everything: %+v", report)
	}
}

func TestLoadReport_Output(t *testing.T) {
	r := newLoadReport("local", "hash-384")
	r.Loaded, r.Batches = 36, 1
	r.finish(36)

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	for _, want := range []string{"KNOWLEDGE BASE LOAD", "local", "hash-384", "36"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("summary missing %q", want)
		}
	}

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["documents"] != float64(36) {
		t.Errorf("documents = %v", decoded["documents"])
	}
}
