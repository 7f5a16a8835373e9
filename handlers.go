package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itsneelabh/insights-agent/internal/memory"
	"github.com/itsneelabh/insights-agent/internal/pipeline"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

func jsonEncode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// insightsRequest is the body of both chat endpoints.
type insightsRequest struct {
	Question       string `json:"question" validate:"required,min=1,max=2000"`
	ConversationID string `json:"conversation_id" validate:"omitempty,max=128"`
	UserID         string `json:"user_id" validate:"omitempty,max=128"`
}

func (s *Server) decodeRequest(r *http.Request, req *insightsRequest) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return err
	}
	return s.validate.Struct(req)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := s.agent.DatabaseStatus(r.Context())
	status := "healthy"
	if dbStatus == "disconnected" {
		status = "degraded"
	}

	cacheStats := s.agent.executor.CacheStats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"version":         Version,
		"database_status": dbStatus,
		"memory_backend":  s.agent.cfg.Memory.Backend,
		"cache": map[string]interface{}{
			"size":   cacheStats.Size,
			"hits":   cacheStats.Hits,
			"misses": cacheStats.Misses,
		},
	})
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.agent.catalog.Descriptions())
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	n := s.agent.executor.Invalidate()
	s.logger.Info("Result cache invalidated", map[string]interface{}{
		"entries": n,
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated": n,
	})
}

func (s *Server) handleThreadSummary(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	messages, err := s.agent.memory.Read(r.Context(), threadID, s.agent.cfg.Memory.MaxMessages)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read thread")
		return
	}

	summary := map[string]interface{}{
		"thread_id":     threadID,
		"message_count": len(messages),
	}
	if len(messages) > 0 {
		summary["last_message_at"] = messages[len(messages)-1].Ts
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleThreadHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	messages, err := s.agent.memory.Read(r.Context(), threadID, s.agent.cfg.Memory.MaxMessages)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read thread")
		return
	}
	if messages == nil {
		messages = []memory.Message{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"thread_id": threadID,
		"messages":  messages,
	})
}

// collectingEmitter accumulates pipeline output for the non-streaming
// endpoint.
type collectingEmitter struct {
	steps     []schema.AgentStep
	dashboard *schema.DashboardSpec
	payload   *schema.DataPayload
	answer    string
}

func (c *collectingEmitter) EmitStep(step schema.AgentStep)           { c.steps = append(c.steps, step) }
func (c *collectingEmitter) EmitDashboard(spec *schema.DashboardSpec) { c.dashboard = spec }
func (c *collectingEmitter) EmitPayload(p *schema.DataPayload)        { c.payload = p }
func (c *collectingEmitter) EmitText(text string)                     { c.answer = text }

// handleInsightsRun runs the pipeline to completion and returns one
// JSON document instead of a stream.
func (s *Server) handleInsightsRun(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	traceID := uuid.NewString()
	threadID := req.ConversationID
	started := time.Now()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	chatContext, prevClarification := s.loadConversation(ctx, threadID)
	s.rememberUserTurn(threadID, req.Question)

	state := pipeline.NewState(traceID, threadID, req.Question, chatContext, prevClarification)
	emitter := &collectingEmitter{}
	runErr := s.agent.pipeline.Run(ctx, state, emitter)

	s.rememberAssistantTurn(threadID, state)
	s.observeRun(state, runErr, time.Since(started))

	resp := map[string]interface{}{
		"success":           runErr == nil,
		"trace_id":          traceID,
		"answer":            emitter.answer,
		"agent_steps":       emitter.steps,
		"execution_time_ms": time.Since(started).Milliseconds(),
	}
	if emitter.dashboard != nil {
		resp["dashboard_spec"] = emitter.dashboard
	}
	if emitter.payload != nil {
		resp["data_payload"] = emitter.payload
	}
	if runErr != nil {
		resp["error"] = runErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// observeRun records request metrics for one completed pipeline run.
func (s *Server) observeRun(state *pipeline.State, runErr error, elapsed time.Duration) {
	kind := "unknown"
	if state.Decision != nil {
		kind = string(state.Decision.Kind)
	}
	outcome := "complete"
	if runErr != nil {
		outcome = "error"
	}
	s.agent.metrics.ObserveRequest(kind, outcome, elapsed)
}
