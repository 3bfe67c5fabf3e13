package embedding

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashModel is a local feature-hashing embedder. Unigrams and bigrams of
// the lowercased word stream are hashed into dim buckets with a sign bit,
// then the vector is L2-normalised. It needs no network and is stable
// across runs, which makes it the offline and test model.
type HashModel struct {
	dim       int
	maxTokens int
}

// NewHashModel returns a HashModel producing dim-dimensional vectors.
func NewHashModel(dim, maxTokens int) *HashModel {
	if dim <= 0 {
		dim = 384
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &HashModel{dim: dim, maxTokens: maxTokens}
}

func (m *HashModel) Name() string   { return fmt.Sprintf("hash-%d", m.dim) }
func (m *HashModel) Dimension() int { return m.dim }

func (m *HashModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := Validate(texts, m.maxTokens); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embedOne(t)
	}
	return out, nil
}

func (m *HashModel) embedOne(text string) []float32 {
	vec := make([]float32, m.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		m.add(vec, w, 1)
		if i > 0 {
			m.add(vec, words[i-1]+" "+w, 0.5)
		}
	}
	Normalize(vec)
	return vec
}

func (m *HashModel) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(m.dim)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
