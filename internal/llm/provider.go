package llm

import "context"

// Provider is the interface all completion and embedding backends implement.
type Provider interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns one embedding vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "groq", "gemini").
	Name() string
}
