// Package config loads agni's configuration from an optional YAML file, a
// .env file and AGNI_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/efebarandurmaz/agni/internal/secrets"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// LLMConfig selects the generation provider.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// EmbeddingConfig selects the embedding model. Provider "hash" uses the
// offline feature-hashing model; any other value names an llm provider.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
	MaxTokens int    `mapstructure:"max_tokens"`
	// CacheDir holds the badger embedding cache. Empty disables caching.
	CacheDir string `mapstructure:"cache_dir"`
}

// VectorConfig selects the index backend: memory, local, qdrant or pgvector.
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	DSN        string `mapstructure:"dsn"`
}

// StatsConfig points at the glucose/meal database. An empty DSN means stats
// are never available.
type StatsConfig struct {
	DSN string `mapstructure:"dsn"`
}

// GraphConfig points at Neo4j. An empty URI selects the in-memory graph.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RetrievalConfig struct {
	MealItemLimit int `mapstructure:"meal_item_limit"`
}

type CorpusConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// TracingConfig configures OTLP export. An empty endpoint disables tracing.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// SecretsConfig selects where "secret:<key>" values are resolved from.
type SecretsConfig struct {
	Provider string `mapstructure:"provider"`
	File     string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "mixtral-8x7b-32768",
			Temperature: 0.7,
			MaxTokens:   2000,
			Timeout:     2 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			Dimension: 384,
			MaxTokens: 256,
			CacheDir:  ".agni/embeddings",
		},
		Vector: VectorConfig{
			Backend:    "local",
			Path:       ".agni/index",
			Host:       "localhost",
			Port:       6334,
			Collection: "ayurveda_knowledge",
		},
		Graph: GraphConfig{
			Username: "neo4j",
		},
		Retrieval: RetrievalConfig{MealItemLimit: 3},
		Corpus:    CorpusConfig{BatchSize: 50},
		Temporal: TemporalConfig{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "agni-predictions",
		},
		Server: ServerConfig{Addr: ":8080"},
		Tracing: TracingConfig{
			SampleRate:  1.0,
			Environment: "development",
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Secrets: SecretsConfig{Provider: "env"},
	}
}

var vectorBackends = map[string]bool{"memory": true, "local": true, "qdrant": true, "pgvector": true}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	// Check for empty API key with active provider (skip keyless providers)
	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}

	// Check temperature range [0, 2.0]
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	// Check for negative max_tokens
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	if c.Vector.Backend != "" && !vectorBackends[c.Vector.Backend] {
		warnings = append(warnings, fmt.Sprintf("vector backend '%s' is unknown (memory, local, qdrant, pgvector)", c.Vector.Backend))
	}
	if c.Vector.Backend == "pgvector" && c.Vector.DSN == "" {
		warnings = append(warnings, "vector backend 'pgvector' needs vector.dsn")
	}

	if c.Embedding.Dimension < 0 {
		warnings = append(warnings, fmt.Sprintf("embedding dimension %d is negative", c.Embedding.Dimension))
	}

	if c.Retrieval.MealItemLimit < 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval meal_item_limit %d is negative", c.Retrieval.MealItemLimit))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from defaults, an optional file, .env and the
// environment, in increasing precedence. An empty path skips the file.
func Load(path string) (*Config, error) {
	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix("AGNI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	mgr, err := secrets.NewManager(&secrets.Config{
		Provider: cfg.Secrets.Provider,
		File:     cfg.Secrets.File,
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	if err := ResolveSecrets(context.Background(), &cfg, mgr); err != nil {
		return nil, err
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// setDefaults registers every default key so AutomaticEnv can override
// keys that no config file mentions.
func setDefaults(v *viper.Viper, d *Config) {
	for key, val := range map[string]any{
		"llm.provider":              d.LLM.Provider,
		"llm.model":                 d.LLM.Model,
		"llm.api_key":               d.LLM.APIKey,
		"llm.base_url":              d.LLM.BaseURL,
		"llm.temperature":           d.LLM.Temperature,
		"llm.max_tokens":            d.LLM.MaxTokens,
		"llm.timeout":               d.LLM.Timeout,
		"llm.max_retries":           d.LLM.MaxRetries,
		"llm.requests_per_minute":   d.LLM.RequestsPerMinute,
		"embedding.provider":        d.Embedding.Provider,
		"embedding.model":           d.Embedding.Model,
		"embedding.api_key":         d.Embedding.APIKey,
		"embedding.base_url":        d.Embedding.BaseURL,
		"embedding.dimension":       d.Embedding.Dimension,
		"embedding.max_tokens":      d.Embedding.MaxTokens,
		"embedding.cache_dir":       d.Embedding.CacheDir,
		"vector.backend":            d.Vector.Backend,
		"vector.path":               d.Vector.Path,
		"vector.host":               d.Vector.Host,
		"vector.port":               d.Vector.Port,
		"vector.collection":         d.Vector.Collection,
		"vector.dsn":                d.Vector.DSN,
		"stats.dsn":                 d.Stats.DSN,
		"graph.uri":                 d.Graph.URI,
		"graph.username":            d.Graph.Username,
		"graph.password":            d.Graph.Password,
		"retrieval.meal_item_limit": d.Retrieval.MealItemLimit,
		"corpus.batch_size":         d.Corpus.BatchSize,
		"temporal.host":             d.Temporal.Host,
		"temporal.namespace":        d.Temporal.Namespace,
		"temporal.task_queue":       d.Temporal.TaskQueue,
		"server.addr":               d.Server.Addr,
		"tracing.endpoint":          d.Tracing.Endpoint,
		"tracing.sample_rate":       d.Tracing.SampleRate,
		"tracing.environment":       d.Tracing.Environment,
		"log.level":                 d.Log.Level,
		"log.format":                d.Log.Format,
		"secrets.provider":          d.Secrets.Provider,
		"secrets.file":              d.Secrets.File,
	} {
		v.SetDefault(key, val)
	}
}

// ResolveSecrets replaces secret references in the credential fields of cfg.
// An empty LLM API key falls back to the provider's conventional variable,
// e.g. GROQ_API_KEY for groq.
func ResolveSecrets(ctx context.Context, cfg *Config, mgr *secrets.Manager) error {
	fields := []struct {
		name string
		val  *string
	}{
		{"llm.api_key", &cfg.LLM.APIKey},
		{"embedding.api_key", &cfg.Embedding.APIKey},
		{"vector.dsn", &cfg.Vector.DSN},
		{"stats.dsn", &cfg.Stats.DSN},
		{"graph.password", &cfg.Graph.Password},
	}
	for _, f := range fields {
		val, err := mgr.Resolve(ctx, *f.val)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f.name, err)
		}
		*f.val = val
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "" && cfg.LLM.Provider != "none" {
		if key, ok := mgr.Lookup(ctx, cfg.LLM.Provider+"_api_key"); ok {
			cfg.LLM.APIKey = key
		}
	}
	return nil
}
