package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/itsneelabh/insights-agent/internal/logging"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the Chat Completions API. Any
// OpenAI-compatible endpoint works through the base URL override,
// which is how local or proxied models are wired in.
type OpenAIClient struct {
	*baseClient
	apiKey  string
	baseURL string
}

// NewOpenAIClient builds a client for the given key and optional base
// URL override.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, logger logging.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	base := newBaseClient(timeout, logger)
	base.defaultModel = model
	if base.defaultModel == "" {
		base.defaultModel = "gpt-4o-mini"
	}
	return &OpenAIClient{baseClient: base, apiKey: apiKey, baseURL: baseURL}
}

func (c *OpenAIClient) Provider() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateResponse sends one chat completion request.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, prompt string, options *Options) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	options = c.applyDefaults(options)
	start := time.Now()

	var messages []openAIMessage
	if options.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: options.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	jsonData, err := json.Marshal(openAIRequest{
		Model:       options.Model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.executeWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(resp.StatusCode, body, "OpenAI")
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no choices in OpenAI response")
	}

	result := &Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	c.logResponse("openai", result.Model, result.Usage, time.Since(start))
	return result, nil
}
