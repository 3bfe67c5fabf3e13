package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"
)

// FileProvider reads secrets from a flat YAML (or JSON) map of key to value.
// It is meant for local development; the file should be mode 0600.
type FileProvider struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFileProvider loads the secrets file at path.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("secrets file path required")
	}
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

// Reload rereads the file.
func (p *FileProvider) Reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}
	data := make(map[string]string)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse secrets file %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}
