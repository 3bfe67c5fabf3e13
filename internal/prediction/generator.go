// Package prediction runs the retrieve, prompt, generate and parse pipeline
// for a meal log.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/efebarandurmaz/agni/internal/llm"
	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/prompt"
)

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// ErrGenerationService matches every *GenerationError.
var ErrGenerationService = errors.New("generation service failed")

var errEmptyCompletion = errors.New("empty completion")

// GenerationError is a failed call to the text generation service:
// transport errors, timeouts, quota, or an empty completion.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationService }

// GeneratorConfig configures a Generator. Zero values take the defaults.
type GeneratorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Metrics     *observability.Metrics
}

// Generator sends an assembled prompt to an llm.Provider.
type Generator struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
	metrics     *observability.Metrics
}

// NewGenerator creates a Generator.
func NewGenerator(p llm.Provider, cfg GeneratorConfig) *Generator {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Generator{
		provider:    p,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		metrics:     cfg.Metrics,
	}
}

// Generate returns the raw completion for userPrompt with reasoning blocks
// removed. It does not retry.
func (g *Generator) Generate(ctx context.Context, userPrompt string) (string, error) {
	ctx, span := observability.StartLLMSpan(ctx, g.provider.Name(), g.model)
	defer span.End()

	start := time.Now()
	resp, err := g.provider.Complete(ctx,
		llm.NewPrompt(prompt.SystemPrompt, userPrompt),
		llm.NewRequestOptions(g.temperature, g.maxTokens))
	elapsed := time.Since(start)

	var content string
	if err == nil && resp != nil {
		content = llm.StripThinkingTags(resp.Content)
	}
	// A completion holding only a reasoning block is as empty as a blank one.
	if err == nil && strings.TrimSpace(content) == "" {
		err = errEmptyCompletion
	}
	if err != nil {
		g.metrics.RecordLLMRequest(elapsed, 0, 0, err)
		genErr := &GenerationError{Provider: g.provider.Name(), Err: err}
		observability.RecordError(span, genErr)
		return "", genErr
	}

	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, elapsed)
	g.metrics.RecordLLMRequest(elapsed, resp.InputTokens, resp.OutputTokens, nil)
	return content, nil
}
