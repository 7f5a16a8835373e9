// Package config centralizes runtime configuration for the insights
// agent. Values are resolved in three layers: built-in defaults, then
// environment variables, then functional options. Options win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Name string `json:"name" yaml:"name" env:"SERVICE_NAME"`

	Server      ServerConfig      `json:"server" yaml:"server"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	AI          AIConfig          `json:"ai" yaml:"ai"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Pipeline    PipelineConfig    `json:"pipeline" yaml:"pipeline"`
	Memory      MemoryConfig      `json:"memory" yaml:"memory"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `json:"port" yaml:"port" env:"PORT" default:"8095"`
	Address         string        `json:"address" yaml:"address" env:"ADDRESS"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" default:"0s"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `json:"cors_origins" yaml:"cors_origins" env:"CORS_ORIGINS" default:"*"`
}

// DatabaseConfig contains settings for the analytics database.
type DatabaseConfig struct {
	URL          string        `json:"url" yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns int           `json:"max_open_conns" yaml:"max_open_conns" default:"10"`
	MaxIdleConns int           `json:"max_idle_conns" yaml:"max_idle_conns" default:"5"`
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout" env:"QUERY_TIMEOUT_SECONDS" default:"30s"`
}

// AIConfig contains LLM provider settings. The provider chain tries
// Provider first and fails over to FallbackProvider on rate limits and
// server errors.
type AIConfig struct {
	Provider         string        `json:"provider" yaml:"provider" env:"AI_PROVIDER" default:"openai"`
	FallbackProvider string        `json:"fallback_provider" yaml:"fallback_provider" env:"AI_FALLBACK_PROVIDER" default:"anthropic"`
	OpenAIAPIKey     string        `json:"-" yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `json:"openai_base_url" yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicAPIKey  string        `json:"-" yaml:"-" env:"ANTHROPIC_API_KEY"`
	Model            string        `json:"model" yaml:"model" env:"AI_MODEL" default:"gpt-4o-mini"`
	Temperature      float32       `json:"temperature" yaml:"temperature" default:"0.1"`
	MaxTokens        int           `json:"max_tokens" yaml:"max_tokens" default:"1500"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"LLM_TIMEOUT_SECONDS" default:"60s"`

	UseForQuerySelection bool `json:"use_for_query_selection" yaml:"use_for_query_selection" env:"USE_LLM_FOR_QUERY_SELECTION" default:"false"`
	UseForNarrative      bool `json:"use_for_narrative" yaml:"use_for_narrative" env:"USE_LLM_FOR_NARRATIVE" default:"false"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	TTL        time.Duration `json:"ttl" yaml:"ttl" env:"CACHE_TTL_SECONDS" default:"900s"`
	MaxEntries int           `json:"max_entries" yaml:"max_entries" env:"CACHE_MAX_ENTRIES" default:"1000"`
}

// PipelineConfig contains orchestrator settings.
type PipelineConfig struct {
	MaxRetries       int           `json:"max_retries" yaml:"max_retries" env:"MAX_RETRIES" default:"3"`
	RequestDeadline  time.Duration `json:"request_deadline" yaml:"request_deadline" env:"REQUEST_DEADLINE_SECONDS" default:"180s"`
	QueryConcurrency int           `json:"query_concurrency" yaml:"query_concurrency" env:"QUERY_CONCURRENCY" default:"3"`
	ClarifyAmbiguous bool          `json:"clarify_ambiguous" yaml:"clarify_ambiguous" env:"CLARIFY_AMBIGUOUS" default:"true"`
}

// MemoryConfig contains chat memory settings.
type MemoryConfig struct {
	Backend     string        `json:"backend" yaml:"backend" env:"MEMORY_BACKEND" default:"memory"`
	RedisURL    string        `json:"redis_url" yaml:"redis_url" env:"REDIS_URL"`
	MaxMessages int           `json:"max_messages" yaml:"max_messages" env:"MEMORY_MAX_MESSAGES" default:"20"`
	TTL         time.Duration `json:"ttl" yaml:"ttl" env:"MEMORY_TTL" default:"24h"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT" default:"json"`
}

// DevelopmentConfig contains local development settings. DemoMode
// serves a deterministic sample dataset instead of querying the
// database.
type DevelopmentConfig struct {
	Enabled  bool `json:"enabled" yaml:"enabled" env:"DEV_MODE" default:"false"`
	DemoMode bool `json:"demo_mode" yaml:"demo_mode" env:"DEMO_MODE" default:"false"`
}

// Option is a functional option applied on top of defaults and
// environment variables.
type Option func(*Config) error

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "insights-agent",
		Server: ServerConfig{
			Port:        8095,
			Address:     "0.0.0.0",
			ReadTimeout: 30 * time.Second,
			// Streaming responses stay open for the whole request
			// deadline, so the server write timeout is disabled.
			WriteTimeout:    0,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			QueryTimeout: 30 * time.Second,
		},
		AI: AIConfig{
			Provider:         "openai",
			FallbackProvider: "anthropic",
			Model:            "gpt-4o-mini",
			Temperature:      0.1,
			MaxTokens:        1500,
			Timeout:          60 * time.Second,
		},
		Cache: CacheConfig{
			TTL:        15 * time.Minute,
			MaxEntries: 1000,
		},
		Pipeline: PipelineConfig{
			MaxRetries:       3,
			RequestDeadline:  180 * time.Second,
			QueryConcurrency: 3,
			ClarifyAmbiguous: true,
		},
		Memory: MemoryConfig{
			Backend:     "memory",
			MaxMessages: 20,
			TTL:         24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// NewConfig builds the effective configuration: defaults, then
// environment, then an optional config file named by
// INSIGHTS_CONFIG_FILE, then functional options. The result is
// validated before it is returned.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if path := os.Getenv("INSIGHTS_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overlays environment variables onto the configuration.
// Invalid numeric values are ignored in favor of the current value.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = parseStringList(v)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("QUERY_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Database.QueryTimeout = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv("AI_FALLBACK_PROVIDER"); v != "" {
		c.AI.FallbackProvider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.AI.OpenAIBaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AI.AnthropicAPIKey = v
	}
	if v := os.Getenv("AI_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.AI.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("USE_LLM_FOR_QUERY_SELECTION"); v != "" {
		c.AI.UseForQuerySelection = parseBool(v)
	}
	if v := os.Getenv("USE_LLM_FOR_NARRATIVE"); v != "" {
		c.AI.UseForNarrative = parseBool(v)
	}

	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Cache.TTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.MaxEntries = n
		}
	}

	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Pipeline.MaxRetries = n
		}
	}
	if v := os.Getenv("REQUEST_DEADLINE_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Pipeline.RequestDeadline = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("QUERY_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.QueryConcurrency = n
		}
	}
	if v := os.Getenv("CLARIFY_AMBIGUOUS"); v != "" {
		c.Pipeline.ClarifyAmbiguous = parseBool(v)
	}

	if v := os.Getenv("MEMORY_BACKEND"); v != "" {
		c.Memory.Backend = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Memory.RedisURL = v
	}
	if v := os.Getenv("MEMORY_MAX_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Memory.MaxMessages = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Logging.Level = "debug"
			c.Logging.Format = "console"
		}
	}
	if v := os.Getenv("DEMO_MODE"); v != "" {
		c.Development.DemoMode = parseBool(v)
	}

	return nil
}

// LoadFromFile overlays a YAML config file onto the configuration.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", cleanPath, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", cleanPath, err)
	}
	return nil
}

// Validate checks the configuration for values that would prevent the
// service from running correctly.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.URL == "" && !c.Development.DemoMode {
		return fmt.Errorf("DATABASE_URL is required unless demo mode is enabled")
	}
	if c.Pipeline.QueryConcurrency < 1 {
		return fmt.Errorf("query concurrency must be at least 1")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	switch c.Memory.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown memory backend %q (want memory or redis)", c.Memory.Backend)
	}
	if c.Memory.Backend == "redis" && c.Memory.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis memory backend")
	}
	if (c.AI.UseForQuerySelection || c.AI.UseForNarrative) && !c.HasLLMCredentials() {
		return fmt.Errorf("an LLM API key is required when LLM features are enabled")
	}
	return nil
}

// HasLLMCredentials reports whether at least one provider key is set.
func (c *Config) HasLLMCredentials() bool {
	return c.AI.OpenAIAPIKey != "" || c.AI.AnthropicAPIKey != ""
}

// Functional options.

// WithPort sets the HTTP server port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %d", port)
		}
		c.Server.Port = port
		return nil
	}
}

// WithDatabaseURL sets the analytics database connection string.
func WithDatabaseURL(url string) Option {
	return func(c *Config) error {
		c.Database.URL = url
		return nil
	}
}

// WithRedisURL sets the Redis URL used by the chat memory backend.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Memory.RedisURL = url
		return nil
	}
}

// WithMemoryBackend selects the chat memory backend.
func WithMemoryBackend(backend string) Option {
	return func(c *Config) error {
		c.Memory.Backend = backend
		return nil
	}
}

// WithCacheTTL sets the result cache time-to-live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		if ttl <= 0 {
			return fmt.Errorf("cache TTL must be positive")
		}
		c.Cache.TTL = ttl
		return nil
	}
}

// WithMaxRetries sets the per-stage retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("max retries must not be negative")
		}
		c.Pipeline.MaxRetries = n
		return nil
	}
}

// WithRequestDeadline sets the whole-request wall clock limit.
func WithRequestDeadline(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("request deadline must be positive")
		}
		c.Pipeline.RequestDeadline = d
		return nil
	}
}

// WithQueryConcurrency caps parallel catalog queries per request.
func WithQueryConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("query concurrency must be at least 1")
		}
		c.Pipeline.QueryConcurrency = n
		return nil
	}
}

// WithLLMQuerySelection toggles LLM-backed query selection.
func WithLLMQuerySelection(enabled bool) Option {
	return func(c *Config) error {
		c.AI.UseForQuerySelection = enabled
		return nil
	}
}

// WithLLMNarrative toggles LLM-backed narrative generation.
func WithLLMNarrative(enabled bool) Option {
	return func(c *Config) error {
		c.AI.UseForNarrative = enabled
		return nil
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(c *Config) error {
		c.Server.CORSOrigins = origins
		return nil
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithDemoMode toggles the deterministic demo dataset.
func WithDemoMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.DemoMode = enabled
		return nil
	}
}

// WithDevelopmentMode toggles development behavior such as loud
// failures on dashboard reference violations.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		return nil
	}
}

// parseStringList splits a comma-separated string, trimming whitespace
// and dropping empty elements.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool accepts "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
