// Package secrets resolves credentials referenced from configuration.
//
// A config value of the form "secret:<key>" is looked up through a Manager
// instead of being used literally, so API keys and DSNs can live in the
// environment or a local secrets file rather than in agni.yaml.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// RefPrefix marks a config value as a secret reference.
const RefPrefix = "secret:"

// ErrNotFound is returned when no provider holds a secret.
var ErrNotFound = errors.New("secret not found")

// SecretKey identifies a credential agni knows about.
type SecretKey string

const (
	SecretLLMAPIKey       SecretKey = "llm_api_key"
	SecretEmbeddingAPIKey SecretKey = "embedding_api_key"
	SecretVectorDSN       SecretKey = "vector_dsn"
	SecretStatsDSN        SecretKey = "stats_dsn"
	SecretGraphPassword   SecretKey = "graph_password"
)

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Config configures the secrets manager.
type Config struct {
	// Provider is "env" or "file".
	Provider string
	// File is the secrets file for the file provider.
	File string
	// EnvPrefix is prepended to environment lookups (default "AGNI_").
	EnvPrefix string
}

// DefaultConfig returns the env-backed configuration.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "AGNI_"}
}

// Manager looks secrets up in a primary provider and falls back to the
// environment. Found values are cached for the life of the manager.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager creates a manager for cfg. A nil cfg uses DefaultConfig.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	env := NewEnvProvider(cfg.EnvPrefix)
	m := &Manager{cache: make(map[string]string)}

	switch cfg.Provider {
	case "env", "":
		m.primary = env
	case "file":
		p, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		m.primary, m.fallback = p, env
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}
	return m, nil
}

// Get returns the secret stored under key.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	for _, p := range []Provider{m.primary, m.fallback} {
		if p == nil {
			continue
		}
		val, err := p.Get(ctx, key)
		if err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s provider: %w", p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Lookup is Get without the error for optional secrets.
func (m *Manager) Lookup(ctx context.Context, key string) (string, bool) {
	val, err := m.Get(ctx, key)
	return val, err == nil
}

// Resolve returns value unchanged unless it is a secret reference, in which
// case the referenced secret is returned.
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	key, ok := strings.CutPrefix(value, RefPrefix)
	if !ok {
		return value, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	return m.Get(ctx, key)
}

// IsRef reports whether value is a secret reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// EnvProvider reads secrets from environment variables. A key is tried with
// the prefix first, then bare, so both AGNI_GROQ_API_KEY and GROQ_API_KEY
// satisfy "groq_api_key".
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "AGNI_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	name := strings.ToUpper(key)
	if val := os.Getenv(p.prefix + name); val != "" {
		return val, nil
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: %s%s", ErrNotFound, p.prefix, name)
}
