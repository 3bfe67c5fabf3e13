// Package llmutil wires the built-in provider clients into an
// llm.ProviderFactory.
package llmutil

import (
	"context"

	"github.com/efebarandurmaz/agni/internal/llm"
	"github.com/efebarandurmaz/agni/internal/llm/anthropic"
	"github.com/efebarandurmaz/agni/internal/llm/gemini"
	"github.com/efebarandurmaz/agni/internal/llm/openai"
)

// RegisterDefaultProviders registers every built-in provider constructor.
// Both cmd/agni and cmd/worker call this.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("gemini", func(c llm.ProviderConfig) (llm.Provider, error) {
		return gemini.New(context.Background(), c.APIKey, c.Model, c.BaseURL, c.EmbedModel)
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New("openai", c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	// OpenAI-compatible presets
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"huggingface", llm.KnownProviders["huggingface"]},
		{"ollama", llm.KnownProviders["ollama"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(p.name, c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}
}
