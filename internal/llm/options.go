package llm

// RequestOptions overrides sampling parameters for one call. Nil fields fall
// back to the provider default.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// NewRequestOptions returns options with temperature and max tokens set.
func NewRequestOptions(temperature float64, maxTokens int) *RequestOptions {
	return &RequestOptions{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}
