package embedding

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/agni/internal/llm"
)

// ProviderModel embeds through any llm.Provider that exposes an embeddings
// endpoint (Ollama all-minilm by default, or Gemini).
type ProviderModel struct {
	provider  llm.Provider
	name      string
	dim       int
	maxTokens int
}

// NewProviderModel wraps p. name identifies the model in cache keys and
// logs; dim is the dimension the provider is expected to return.
func NewProviderModel(p llm.Provider, name string, dim, maxTokens int) *ProviderModel {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ProviderModel{provider: p, name: name, dim: dim, maxTokens: maxTokens}
}

func (m *ProviderModel) Name() string   { return m.name }
func (m *ProviderModel) Dimension() int { return m.dim }

// Embed validates texts, calls the provider once, and L2-normalises every
// returned vector.
func (m *ProviderModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := Validate(texts, m.maxTokens); err != nil {
		return nil, err
	}

	vecs, err := m.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding via %s: %w", m.provider.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding via %s: got %d vectors for %d texts", m.provider.Name(), len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != m.dim {
			return nil, fmt.Errorf("embedding via %s: vector %d has dimension %d, want %d", m.provider.Name(), i, len(v), m.dim)
		}
		Normalize(v)
	}
	return vecs, nil
}
