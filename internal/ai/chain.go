package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsneelabh/insights-agent/internal/config"
	"github.com/itsneelabh/insights-agent/internal/logging"
)

// ChainClient fails over between providers: each provider is tried in
// order until one succeeds. Client errors (bad request, invalid key)
// fail fast since retrying another provider with the same request will
// not help for a malformed prompt, but auth errors are provider-local
// so the chain moves on for those.
type ChainClient struct {
	providers []Client
	logger    logging.Logger
}

// NewChain builds a failover chain from the given providers. At least
// one provider is required.
func NewChain(logger logging.Logger, providers ...Client) (*ChainClient, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("configuration error: at least one provider required for chain")
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &ChainClient{providers: providers, logger: logger}, nil
}

func (c *ChainClient) Provider() string { return "chain" }

// GenerateResponse tries each provider in order, returning the first
// successful response.
func (c *ChainClient) GenerateResponse(ctx context.Context, prompt string, options *Options) (*Response, error) {
	var lastErr error

	for i, provider := range c.providers {
		resp, err := provider.GenerateResponse(ctx, prompt, options)
		if err == nil {
			if i > 0 {
				c.logger.Info("Provider failover succeeded", map[string]interface{}{
					"provider": provider.Provider(),
					"attempt":  i + 1,
				})
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isBadRequest(err) {
			return nil, err
		}
		c.logger.Warn("Provider failed, trying next in chain", map[string]interface{}{
			"provider": provider.Provider(),
			"error":    err.Error(),
		})
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// isBadRequest reports whether the error indicates a malformed
// request, which no provider in the chain can fix.
func isBadRequest(err error) bool {
	return strings.Contains(err.Error(), "invalid request")
}

// NewFromConfig assembles the provider chain declared in the AI
// config. Providers without credentials are skipped; an empty chain is
// a configuration error when LLM features are enabled, so callers
// should check HasLLMCredentials first.
func NewFromConfig(cfg *config.AIConfig, logger logging.Logger) (Client, error) {
	order := []string{cfg.Provider}
	if cfg.FallbackProvider != "" && cfg.FallbackProvider != cfg.Provider {
		order = append(order, cfg.FallbackProvider)
	}

	var providers []Client
	for _, name := range order {
		switch name {
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				logger.Warn("Provider not available, skipping in chain", map[string]interface{}{
					"provider": "openai",
				})
				continue
			}
			providers = append(providers, NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.Timeout, logger))
		case "anthropic":
			if cfg.AnthropicAPIKey == "" {
				logger.Warn("Provider not available, skipping in chain", map[string]interface{}{
					"provider": "anthropic",
				})
				continue
			}
			model := ""
			if cfg.Provider == "anthropic" {
				model = cfg.Model
			}
			providers = append(providers, NewAnthropicClient(cfg.AnthropicAPIKey, model, cfg.Timeout, logger))
		default:
			return nil, fmt.Errorf("configuration error: unknown provider %q", name)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("configuration error: no providers could be initialized (check API keys)")
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return NewChain(logger, providers...)
}
