package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/itsneelabh/insights-agent/internal/logging"
)

// baseClient carries the HTTP transport, retry policy and request
// defaults shared by every provider.
type baseClient struct {
	httpClient *http.Client
	logger     logging.Logger

	maxRetries int
	retryDelay time.Duration

	defaultModel       string
	defaultTemperature float32
	defaultMaxTokens   int
}

func newBaseClient(timeout time.Duration, logger logging.Logger) *baseClient {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &baseClient{
		httpClient:         &http.Client{Timeout: timeout},
		logger:             logger,
		maxRetries:         3,
		retryDelay:         time.Second,
		defaultTemperature: 0.2,
		defaultMaxTokens:   1024,
	}
}

func (b *baseClient) applyDefaults(options *Options) *Options {
	if options == nil {
		options = &Options{}
	}
	if options.Model == "" {
		options.Model = b.defaultModel
	}
	if options.Temperature == 0 {
		options.Temperature = b.defaultTemperature
	}
	if options.MaxTokens == 0 {
		options.MaxTokens = b.defaultMaxTokens
	}
	return options
}

// executeWithRetry sends the request with exponential backoff. 4xx
// responses other than 429 return immediately; network errors, 429 and
// 5xx are retried up to maxRetries times.
func (b *baseClient) executeWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		resp, err := b.httpClient.Do(req.Clone(ctx))

		if err == nil && resp.StatusCode < 400 {
			if attempt > 0 {
				b.logger.Info("AI request succeeded after retry", map[string]interface{}{
					"attempts": attempt + 1,
				})
			}
			return resp, nil
		}
		if err == nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			_ = resp.Body.Close()
		}

		if attempt < b.maxRetries {
			delay := b.retryDelay * time.Duration(1<<uint(attempt))
			b.logger.Warn("AI request failed, retrying", map[string]interface{}{
				"attempt":        attempt + 1,
				"max_retries":    b.maxRetries,
				"retry_delay_ms": delay.Milliseconds(),
				"error":          lastErr.Error(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", b.maxRetries, lastErr)
}

// handleError maps API status codes onto readable errors.
func (b *baseClient) handleError(statusCode int, body []byte, provider string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s API error: invalid or missing API key", provider)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s API error: rate limit exceeded", provider)
	case http.StatusBadRequest:
		return fmt.Errorf("%s API error: invalid request - %s", provider, string(body))
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%s API error: service temporarily unavailable (status %d)", provider, statusCode)
	default:
		return fmt.Errorf("%s API error (status %d): %s", provider, statusCode, string(body))
	}
}

func (b *baseClient) logResponse(provider, model string, usage TokenUsage, duration time.Duration) {
	b.logger.Debug("AI response received", map[string]interface{}{
		"provider":          provider,
		"model":             model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"duration_ms":       duration.Milliseconds(),
	})
}
