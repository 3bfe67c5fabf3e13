// Package corpus holds the embedded Ayurvedic knowledge base and loads it
// into a vector index.
package corpus

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// Version is the corpus schema version this build understands.
const Version = 1

//go:embed ayurveda.yaml
var ayurvedaYAML []byte

// Document is one knowledge passage.
type Document struct {
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
	Topic    string `yaml:"topic,omitempty"`
	Dosha    string `yaml:"dosha,omitempty"`
}

// Metadata returns the passage's index metadata. Empty fields are left out.
func (d Document) Metadata() map[string]string {
	m := map[string]string{"category": d.Category}
	if d.Topic != "" {
		m["topic"] = d.Topic
	}
	if d.Dosha != "" {
		m["dosha"] = d.Dosha
	}
	return m
}

// Food is an entry of the food database.
type Food struct {
	Name         string   `yaml:"name"`
	Sanskrit     string   `yaml:"sanskrit"`
	Taste        string   `yaml:"taste"`
	Qualities    string   `yaml:"qualities"`
	DoshaEffects string   `yaml:"dosha_effects"`
	Benefits     string   `yaml:"benefits"`
	Quantity     string   `yaml:"quantity"`
	Preparation  string   `yaml:"preparation"`
	Conditions   []string `yaml:"conditions"`
}

// Corpus is a parsed knowledge base.
type Corpus struct {
	Version   int        `yaml:"version"`
	Documents []Document `yaml:"documents"`
	Foods     []Food     `yaml:"foods"`
}

// Default returns the knowledge base compiled into the binary.
func Default() (*Corpus, error) {
	return Parse(ayurvedaYAML)
}

// Parse decodes and validates a corpus file.
func Parse(data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if c.Version != Version {
		return nil, fmt.Errorf("corpus version %d not supported (want %d)", c.Version, Version)
	}
	for i, d := range c.Documents {
		if strings.TrimSpace(d.Text) == "" {
			return nil, fmt.Errorf("corpus document %d: empty text", i)
		}
		if d.Category == "" {
			return nil, fmt.Errorf("corpus document %d: missing category", i)
		}
	}
	for i, f := range c.Foods {
		if f.Name == "" {
			return nil, fmt.Errorf("corpus food %d: missing name", i)
		}
	}
	return &c, nil
}

// DocumentID returns the index id of the document at ordinal.
func DocumentID(ordinal int) string {
	return fmt.Sprintf("doc_%d", ordinal)
}
