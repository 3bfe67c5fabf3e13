// Package anthropic implements llm.Provider for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/efebarandurmaz/agni/internal/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 2000
)

// Client talks to /messages over plain HTTP.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// New creates an Anthropic provider.
func New(apiKey, model, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (c *Client) Name() string { return "anthropic" }

type messagesRequest struct {
	Model         string        `json:"model"`
	MaxTokens     int           `json:"max_tokens"`
	System        string        `json:"system,omitempty"`
	Messages      []llm.Message `json:"messages"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// APIError is a non-200 reply from the Messages API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("anthropic: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("anthropic: %d %s: %s: %s", e.Status, http.StatusText(e.Status), e.Type, e.Message)
}

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	body := messagesRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System:    prompt.SystemPrompt,
		Messages:  prompt.Messages,
	}
	if opts != nil {
		if opts.MaxTokens != nil {
			body.MaxTokens = *opts.MaxTokens
		}
		body.Temperature = opts.Temperature
		body.TopP = opts.TopP
		body.StopSequences = opts.StopSeqs
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, respBody)
	}

	var result messagesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		text.WriteString(block.Text)
	}

	return &llm.Response{
		Content:      text.String(),
		Model:        result.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		StopReason:   result.StopReason,
	}, nil
}

func decodeError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{Status: status, Type: envelope.Error.Type, Message: envelope.Error.Message}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}

func (c *Client) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("anthropic: embedding not supported, use a dedicated embedding provider")
}
