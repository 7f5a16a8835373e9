package main

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/itsneelabh/insights-agent/internal/agents"
	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/cache"
	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/config"
	"github.com/itsneelabh/insights-agent/internal/executor"
	"github.com/itsneelabh/insights-agent/internal/intent"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/memory"
	"github.com/itsneelabh/insights-agent/internal/metrics"
	"github.com/itsneelabh/insights-agent/internal/pipeline"
)

// InsightsAgent owns the engine components for one process: the query
// catalog and its executors, the LLM provider chain, the pipeline, the
// chat memory store and the metrics registry. The HTTP layer only
// holds a reference to this struct.
type InsightsAgent struct {
	cfg     *config.Config
	logger  logging.Logger
	catalog *catalog.Catalog

	db       *sqlx.DB
	executor *executor.CachedExecutor
	pipeline *pipeline.Pipeline
	memory   memory.Store
	metrics  *metrics.Metrics

	llm ai.Client
}

// NewInsightsAgent wires the engine from configuration. Database and
// Redis connection failures at startup are configuration errors; a
// missing LLM credential is not, the engine falls back to its
// deterministic paths.
func NewInsightsAgent(cfg *config.Config, logger logging.Logger) (*InsightsAgent, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	cat, err := catalog.New()
	if err != nil {
		return nil, fmt.Errorf("loading query catalog: %w", err)
	}

	agent := &InsightsAgent{
		cfg:     cfg,
		logger:  logger,
		catalog: cat,
		metrics: metrics.New(),
	}

	var base executor.Executor
	switch {
	case cfg.Development.DemoMode:
		logger.Info("Demo mode enabled, serving sample dataset", nil)
		base = executor.NewDemoExecutor(cat)
	default:
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required unless demo mode is enabled")
		}
		db, err := sqlx.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			// The service still starts; the health endpoint reports the
			// database as down until it becomes reachable.
			logger.Warn("Database not reachable at startup", map[string]interface{}{
				"error": err.Error(),
			})
		}
		cancel()

		agent.db = db
		base = executor.NewSQLExecutor(db, cat, cfg.Database.QueryTimeout, logger)
	}

	resultCache := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	agent.executor = executor.NewCachedExecutor(base, cat, resultCache, logger)

	if cfg.HasLLMCredentials() {
		llm, err := ai.NewFromConfig(&cfg.AI, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring LLM providers: %w", err)
		}
		agent.llm = llm
	} else {
		logger.Info("No LLM credentials configured, using deterministic paths only", nil)
	}

	classifier := intent.NewClassifier(agent.llm, cfg.Pipeline.ClarifyAmbiguous, logger)
	data := agents.NewDataAgent(agent.executor, cat, agent.llm, cfg.AI.UseForQuerySelection, cfg.Pipeline.QueryConcurrency, logger)
	presenter := agents.NewPresentationBuilder(agent.llm, cfg.AI.UseForNarrative, cfg.Development.Enabled, logger)
	agent.pipeline = pipeline.New(classifier, data, presenter, cfg.Pipeline.MaxRetries, logger)

	switch cfg.Memory.Backend {
	case "redis":
		store, err := memory.NewRedisStore(cfg.Memory.RedisURL, cfg.Memory.MaxMessages, cfg.Memory.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring redis memory: %w", err)
		}
		agent.memory = store
	default:
		agent.memory = memory.NewInMemoryStore(cfg.Memory.MaxMessages)
	}

	return agent, nil
}

// DatabaseStatus reports the analytics database connectivity for the
// health endpoint.
func (a *InsightsAgent) DatabaseStatus(ctx context.Context) string {
	if a.cfg.Development.DemoMode {
		return "demo"
	}
	if a.db == nil {
		return "not_configured"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

// Close releases database and memory-store connections.
func (a *InsightsAgent) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = err
		}
	}
	if closer, ok := a.memory.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
