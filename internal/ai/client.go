// Package ai provides the LLM clients used for classification
// fallback, query selection and narrative generation. Providers share
// one small interface so the engine never cares which vendor answered.
package ai

import "context"

// Options controls a single generation request.
type Options struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// TokenUsage reports token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed generation.
type Response struct {
	Content string     `json:"content"`
	Model   string     `json:"model"`
	Usage   TokenUsage `json:"usage"`
}

// Client generates text from a prompt. Implementations must be safe
// for concurrent use.
type Client interface {
	GenerateResponse(ctx context.Context, prompt string, options *Options) (*Response, error)
	Provider() string
}
