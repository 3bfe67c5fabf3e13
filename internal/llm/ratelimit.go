package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures rate limiting for LLM providers.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of API calls per minute (0 = unlimited)
	RequestsPerMinute int
	// TokensPerMinute limits total tokens per minute (0 = unlimited)
	TokensPerMinute int
	// BurstSize allows temporary burst above the rate limit
	BurstSize int
}

// DefaultRateLimitConfig returns sensible defaults for most providers.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 25,    // conservative for free-tier cloud APIs (Groq etc.)
		TokensPerMinute:   25000, // Groq free tier: 6K-30K TPM depending on model
		BurstSize:         3,
	}
}

// RateLimitProvider wraps a provider with a request limiter and a token
// budget limiter.
type RateLimitProvider struct {
	inner    Provider
	config   *RateLimitConfig
	requests *rate.Limiter
	tokens   *rate.Limiter
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}

	r := &RateLimitProvider{inner: inner, config: config}
	if config.RequestsPerMinute > 0 {
		r.requests = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), burst)
	}
	if config.TokensPerMinute > 0 {
		r.tokens = rate.NewLimiter(rate.Limit(float64(config.TokensPerMinute)/60.0), config.TokensPerMinute)
	}
	return r
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Complete rate-limits and delegates to the inner provider.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}

	resp, err := r.inner.Complete(ctx, prompt, opts)
	if err == nil && resp != nil {
		r.trackTokenUsage(resp.InputTokens + resp.OutputTokens)
	}
	return resp, err
}

// Embed rate-limits by request count only.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// waitForCapacity blocks until a request slot is free and the token budget
// is not overdrawn.
func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	if r.requests != nil {
		if err := r.requests.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if r.tokens != nil {
		// Wait for at least one token so an overdrawn budget blocks.
		if err := r.tokens.Wait(ctx); err != nil {
			return fmt.Errorf("token budget wait: %w", err)
		}
	}
	return nil
}

// trackTokenUsage draws the consumed tokens from the budget. The draw may
// overdraw the bucket; later callers then wait for it to refill.
func (r *RateLimitProvider) trackTokenUsage(n int) {
	if r.tokens == nil || n <= 0 {
		return
	}
	r.tokens.ReserveN(time.Now(), n)
}

// WithRateLimit wraps a provider with rate limiting.
func WithRateLimit(provider Provider, config *RateLimitConfig) Provider {
	if provider == nil {
		return nil
	}
	return NewRateLimitProvider(provider, config)
}
