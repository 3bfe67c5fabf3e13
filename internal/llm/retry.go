package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures the timeout and retry wrapper.
type RetryConfig struct {
	MaxRetries int           // Retry attempts after the first call (0 = single attempt)
	RetryDelay time.Duration // Initial backoff delay
	MaxDelay   time.Duration // Cap for exponential backoff
	Timeout    time.Duration // Per-attempt timeout
}

// DefaultRetryConfig bounds each attempt but never retries. Generation calls
// are paid and nondeterministic, so retrying is left to the caller.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 0,
		RetryDelay: 1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    2 * time.Minute,
	}
}

// RetryProvider wraps a Provider with a per-attempt timeout and optional
// exponential-backoff retries.
type RetryProvider struct {
	inner  Provider
	config *RetryConfig
}

// NewRetryProvider wraps an existing provider.
func NewRetryProvider(inner Provider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryProvider{inner: inner, config: config}
}

// Name returns the underlying provider name.
func (r *RetryProvider) Name() string {
	return r.inner.Name()
}

// Complete sends a prompt under the configured timeout and retry policy.
func (r *RetryProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	return withRetry(ctx, r, func(ctx context.Context) (*Response, error) {
		return r.inner.Complete(ctx, prompt, opts)
	})
}

// Embed sends an embedding request under the configured timeout and retry policy.
func (r *RetryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, r, func(ctx context.Context) ([][]float32, error) {
		return r.inner.Embed(ctx, texts)
	})
}

func withRetry[T any](ctx context.Context, r *RetryProvider, call func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		attemptCtx := ctx
		if r.config.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
			defer cancel()
		}
		out, err := call(attemptCtx)
		if err != nil && !r.isRetryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	if r.config.MaxRetries <= 0 {
		out, err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return out, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.RetryDelay
	if r.config.MaxDelay > 0 {
		b.MaxInterval = r.config.MaxDelay
	}

	out, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.config.MaxRetries+1)),
	)
	if err != nil {
		return out, fmt.Errorf("%s: after up to %d attempts: %w", r.inner.Name(), r.config.MaxRetries+1, err)
	}
	return out, nil
}

// isRetryable reports whether an error is worth another attempt.
func (r *RetryProvider) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := err.Error()

	// 429 is retryable unless it is a daily token quota.
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") {
		if strings.Contains(errStr, "tokens per day") || strings.Contains(errStr, "TPD") {
			return false
		}
		return true
	}

	for _, code := range []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	} {
		if strings.Contains(errStr, fmt.Sprint(code)) || strings.Contains(errStr, http.StatusText(code)) {
			return true
		}
	}

	for _, code := range []string{"400", "401", "403", "404"} {
		if strings.Contains(errStr, code) {
			return false
		}
	}

	return true
}

// WrapWithRetry wraps provider using the timeout and retry fields of cfg.
func WrapWithRetry(provider Provider, cfg ProviderConfig) Provider {
	if provider == nil {
		return nil
	}

	rc := DefaultRetryConfig()
	if cfg.Timeout > 0 {
		rc.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		rc.RetryDelay = cfg.RetryDelay
	}
	return NewRetryProvider(provider, rc)
}
