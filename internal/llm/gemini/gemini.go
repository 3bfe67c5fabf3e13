// Package gemini implements llm.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/efebarandurmaz/agni/internal/llm"
)

const (
	defaultModel      = "gemini-2.0-flash"
	defaultEmbedModel = "text-embedding-004"
)

// Client implements llm.Provider for the Gemini Developer API.
type Client struct {
	model      string
	embedModel string
	api        *genai.Client
}

// New creates a Gemini provider. baseURL is optional and only useful for
// proxies and tests.
func New(ctx context.Context, apiKey, model, baseURL, embedModel string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	api, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{model: model, embedModel: embedModel, api: api}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if prompt.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(prompt.SystemPrompt)}}
	}
	if opts != nil {
		if opts.Temperature != nil {
			cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
		}
		if opts.TopP != nil {
			cfg.TopP = genai.Ptr(float32(*opts.TopP))
		}
		if opts.MaxTokens != nil {
			cfg.MaxOutputTokens = int32(*opts.MaxTokens)
		}
		cfg.StopSequences = opts.StopSeqs
	}

	contents := make([]*genai.Content, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, textContent(m.Content, role))
	}

	resp, err := c.api.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	out := &llm.Response{
		Content: resp.Text(),
		Model:   resp.ModelVersion,
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = textContent(t, "user")
	}

	resp, err := c.api.Models.EmbedContent(ctx, c.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func textContent(text, role string) *genai.Content {
	return &genai.Content{Role: role, Parts: []*genai.Part{genai.NewPartFromText(text)}}
}
