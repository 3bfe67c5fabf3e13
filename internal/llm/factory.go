package llm

import (
	"fmt"
	"sort"
	"time"
)

// ProviderConfig holds everything needed to build any provider.
type ProviderConfig struct {
	Provider   string // "groq", "openai", "ollama", "gemini", "anthropic", "custom", ...
	APIKey     string
	Model      string
	BaseURL    string // Override for self-hosted / custom endpoints
	EmbedModel string // Embedding model name, for providers that embed

	// Timeout bounds a single attempt. MaxRetries is an opt-in caller policy;
	// zero means a failed call is returned as-is.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// RequestsPerMinute enables client-side rate limiting when > 0.
	RequestsPerMinute int
	TokensPerMinute   int
}

// DefaultProviderConfig returns the generation defaults: Groq with no retries.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Provider:   "groq",
		Model:      "mixtral-8x7b-32768",
		Timeout:    2 * time.Minute,
		RetryDelay: 1 * time.Second,
	}
}

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// NewFactory creates an empty factory. See llmutil.RegisterDefaultProviders.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. Returns nil (no error) when provider is
// empty or "none".
//
// The result is wrapped with a per-attempt timeout (and retries, when
// MaxRetries > 0) and then with rate limiting when configured.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q, registered: %v", cfg.Provider, f.Names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", cfg.Provider, err)
	}

	if cfg.Timeout > 0 || cfg.MaxRetries > 0 {
		provider = WrapWithRetry(provider, cfg)
	}
	if cfg.RequestsPerMinute > 0 || cfg.TokensPerMinute > 0 {
		provider = WithRateLimit(provider, &RateLimitConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			TokensPerMinute:   cfg.TokensPerMinute,
		})
	}
	return provider, nil
}

// Names returns the registered provider names, sorted.
func (f *ProviderFactory) Names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders documents the built-in presets and their default base URLs.
// OpenAI-compatible APIs (Groq, Ollama, Together, ...) share one client.
//
//	anthropic  → https://api.anthropic.com/v1
//	openai     → https://api.openai.com/v1
//	groq       → https://api.groq.com/openai/v1
//	huggingface→ https://api-inference.huggingface.co/v1
//	ollama     → http://localhost:11434/v1
//	together   → https://api.together.xyz/v1
//	deepseek   → https://api.deepseek.com/v1
//	gemini     → Google Gen AI SDK default endpoint
var KnownProviders = map[string]string{
	"anthropic":   "https://api.anthropic.com/v1",
	"openai":      "https://api.openai.com/v1",
	"groq":        "https://api.groq.com/openai/v1",
	"huggingface": "https://api-inference.huggingface.co/v1",
	"ollama":      "http://localhost:11434/v1",
	"together":    "https://api.together.xyz/v1",
	"deepseek":    "https://api.deepseek.com/v1",
	"gemini":      "https://generativelanguage.googleapis.com",
}
