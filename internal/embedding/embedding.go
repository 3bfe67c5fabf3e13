// Package embedding turns text into fixed-length vectors for the vector
// index. Every Model is deterministic for a fixed model version and rejects
// empty, blank, or over-length input with ErrEmbedding.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrEmbedding reports input the model cannot embed.
var ErrEmbedding = errors.New("embedding: invalid input")

// DefaultMaxTokens matches all-MiniLM-L6-v2's sequence limit.
const DefaultMaxTokens = 256

// Model embeds a batch of texts. Batching is an optimisation only: a text
// embedded alone equals the same text embedded in a batch.
type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// EstimateTokens approximates a subword token count as one token per four
// runes, rounded up.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// Validate checks a batch against the shared input rules.
func Validate(texts []string, maxTokens int) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: empty input list", ErrEmbedding)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: item %d is empty", ErrEmbedding, i)
		}
		if maxTokens > 0 {
			if n := EstimateTokens(t); n > maxTokens {
				return fmt.Errorf("%w: item %d is ~%d tokens, limit %d", ErrEmbedding, i, n, maxTokens)
			}
		}
	}
	return nil
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
