// Package llm defines the text-generation provider abstraction used by the
// analysis pipeline, plus the local inference runtime client.
package llm

import "context"

// GenerateRequest encapsulates one completion request.
type GenerateRequest struct {
	// Model overrides the provider's default model when non-empty.
	Model string `json:"model,omitempty"`

	// Prompt is the full instruction text.
	Prompt string `json:"prompt"`

	// MaxTokens caps generation length. Zero means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling. Zero means provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse is the provider's completion output.
type GenerateResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Provider is one candidate source of narrative analysis. Implementations
// must honor context cancellation and return an error rather than blocking
// past the caller's deadline.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}
