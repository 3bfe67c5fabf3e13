// Package openai implements llm.Provider for any OpenAI-compatible API
// (OpenAI, Groq, Ollama, Together, vLLM, ...).
package openai

import (
	"context"
	"fmt"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/efebarandurmaz/agni/internal/llm"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultEmbedModel = "text-embedding-3-small"
	defaultMaxTokens  = 2000
)

// Client wraps a go-openai client bound to one chat model and one
// embedding model.
type Client struct {
	name       string
	model      string
	embedModel string
	baseURL    string
	api        *goopenai.Client
}

// New creates an OpenAI-compatible provider. name is reported by Name so a
// Groq or Ollama preset is distinguishable in logs and metrics.
func New(name, apiKey, model, baseURL, embedModel string) *Client {
	if name == "" {
		name = "openai"
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}

	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &Client{
		name:       name,
		model:      model,
		embedModel: embedModel,
		baseURL:    baseURL,
		api:        goopenai.NewClientWithConfig(cfg),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(prompt.Messages)+1)
	if prompt.SystemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: prompt.SystemPrompt,
		})
	}
	for _, m := range prompt.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	req := goopenai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: defaultMaxTokens,
	}
	if opts != nil {
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
		}
		if opts.TopP != nil {
			req.TopP = float32(*opts.TopP)
		}
		req.Stop = opts.StopSeqs
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	out := &llm.Response{
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", c.name, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s embed: got %d embeddings for %d inputs", c.name, len(resp.Data), len(texts))
	}

	// Servers may return data out of order; Index is authoritative.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
