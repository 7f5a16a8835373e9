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

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicAPIVersion     = "2023-06-01"
)

// AnthropicClient talks to the native Messages API.
type AnthropicClient struct {
	*baseClient
	apiKey  string
	baseURL string
}

// NewAnthropicClient builds a client for the given key.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, logger logging.Logger) *AnthropicClient {
	base := newBaseClient(timeout, logger)
	base.defaultModel = model
	if base.defaultModel == "" {
		base.defaultModel = "claude-3-5-haiku-20241022"
	}
	return &AnthropicClient{baseClient: base, apiKey: apiKey, baseURL: anthropicDefaultBaseURL}
}

func (c *AnthropicClient) Provider() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// GenerateResponse sends one Messages API request.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt string, options *Options) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	options = c.applyDefaults(options)
	start := time.Now()

	reqBody := anthropicRequest{
		Model:       options.Model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
		System:      options.SystemPrompt,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

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
		return nil, c.handleError(resp.StatusCode, body, "Anthropic")
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var content string
	for _, item := range parsed.Content {
		if item.Type == "text" {
			content += item.Text
		}
	}
	if content == "" {
		return nil, fmt.Errorf("no text content in Anthropic response")
	}

	result := &Response{
		Content: content,
		Model:   parsed.Model,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}
	c.logResponse("anthropic", result.Model, result.Usage, time.Since(start))
	return result, nil
}
