package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/itsneelabh/insights-agent/internal/config"
	"github.com/itsneelabh/insights-agent/internal/logging"
)

// Server is the HTTP front of the insights agent. It owns the router
// and the lifecycle of the listener; all domain work is delegated to
// the InsightsAgent.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	agent    *InsightsAgent
	validate *validator.Validate

	// memoryWrites tracks in-flight background chat-memory appends so
	// shutdown can let them drain.
	memoryWrites sync.WaitGroup

	httpServer *http.Server
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, agent *InsightsAgent, logger logging.Logger) *Server {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		agent:    agent,
		validate: validator.New(),
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:     s.routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays disabled: streaming responses are bounded
		// by the pipeline request deadline instead.
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/v1/chat/stream", s.handleChatStream)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/queries", s.handleQueries)
		r.Post("/insights/run", s.handleInsightsRun)
		r.Post("/cache/invalidate", s.handleCacheInvalidate)
		r.Get("/threads/{threadID}", s.handleThreadSummary)
		r.Get("/threads/{threadID}/history", s.handleThreadHistory)
	})

	r.Method(http.MethodGet, "/metrics", s.agent.metrics.Handler())

	return r
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", map[string]interface{}{
		"address": s.httpServer.Addr,
		"version": Version,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout,
// then lets pending memory writes finish (each is bounded by its own
// 2s deadline).
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down", nil)
	err := s.httpServer.Shutdown(ctx)
	s.memoryWrites.Wait()
	return err
}

// writeJSON marshals v onto the response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonEncode(w, v); err != nil {
		s.logger.Error("Failed to write response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// writeError renders the uniform error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":     msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
