package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/itsneelabh/insights-agent/internal/memory"
	"github.com/itsneelabh/insights-agent/internal/metrics"
	"github.com/itsneelabh/insights-agent/internal/pipeline"
	"github.com/itsneelabh/insights-agent/internal/schema"
	"github.com/itsneelabh/insights-agent/internal/stream"
)

// streamEmitter adapts a stream.Writer to the pipeline's Emitter and
// counts the emitted frames.
type streamEmitter struct {
	writer  *stream.Writer
	metrics *metrics.Metrics
}

func (e *streamEmitter) EmitStep(step schema.AgentStep) {
	e.writer.Data("agent_step", step)
	e.metrics.StreamEvents.WithLabelValues("data-agent_step").Inc()
}

func (e *streamEmitter) EmitDashboard(spec *schema.DashboardSpec) {
	e.writer.Data("dashboard", spec)
	e.metrics.StreamEvents.WithLabelValues("data-dashboard").Inc()
}

func (e *streamEmitter) EmitPayload(payload *schema.DataPayload) {
	e.writer.Data("payload", payload)
	e.metrics.StreamEvents.WithLabelValues("data-payload").Inc()
}

func (e *streamEmitter) EmitText(text string) {
	e.writer.TextBlock(uuid.NewString(), text)
	e.metrics.StreamEvents.WithLabelValues("text-delta").Inc()
}

// handleChatStream serves one chat turn over the streaming protocol.
// Request validation happens before the stream opens so malformed
// bodies still get a plain 400; once streaming starts, failures ride
// the finish event instead of the status code.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	writer, err := stream.NewWriter(w, s.logger)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	traceID := uuid.NewString()
	messageID := uuid.NewString()
	threadID := req.ConversationID
	started := time.Now()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	chatContext, prevClarification := s.loadConversation(ctx, threadID)
	s.rememberUserTurn(threadID, req.Question)

	s.logger.Info("Chat stream started", map[string]interface{}{
		"trace_id":  traceID,
		"thread_id": threadID,
		"user_id":   req.UserID,
	})

	stream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	writer.Start(messageID)
	writer.Data("trace", map[string]interface{}{"trace_id": traceID})

	state := pipeline.NewState(traceID, threadID, req.Question, chatContext, prevClarification)
	runErr := s.agent.pipeline.Run(ctx, state, &streamEmitter{writer: writer, metrics: s.agent.metrics})

	s.rememberAssistantTurn(threadID, state)
	s.observeRun(state, runErr, time.Since(started))

	switch {
	case r.Context().Err() != nil:
		// The client is gone; there is nobody left to read a terminator.
		writer.Discard()
	case errors.Is(runErr, context.DeadlineExceeded), errors.Is(runErr, context.Canceled):
		writer.Finish(messageID, stream.FinishCancelled)
	case runErr != nil:
		s.logger.Error("Pipeline run failed", map[string]interface{}{
			"trace_id": traceID,
			"error":    runErr.Error(),
		})
		writer.Finish(messageID, stream.FinishError)
	default:
		writer.Finish(messageID, stream.FinishComplete)
	}
}

// requestContext bounds one chat request by the pipeline deadline.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := s.agent.cfg.Pipeline.RequestDeadline
	if deadline <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), deadline)
}

// loadConversation fetches the rendered transcript and whether the
// previous assistant turn asked for clarification.
func (s *Server) loadConversation(ctx context.Context, threadID string) (string, bool) {
	if threadID == "" {
		return "", false
	}
	maxMessages := s.agent.cfg.Memory.MaxMessages
	transcript := memory.RenderContext(ctx, s.agent.memory, threadID, maxMessages)
	prevClarification := memory.LastAssistantAskedClarification(ctx, s.agent.memory, threadID, maxMessages)
	return transcript, prevClarification
}

// rememberUserTurn records the incoming question. Best-effort: the
// write runs off the request path so a slow store never delays the
// stream.
func (s *Server) rememberUserTurn(threadID, question string) {
	if threadID == "" {
		return
	}
	s.appendAsync(threadID, memory.NewMessage(memory.RoleUser, question, nil))
}

// rememberAssistantTurn records the answer with its routing kind so
// the next turn can detect a pending clarification.
func (s *Server) rememberAssistantTurn(threadID string, state *pipeline.State) {
	if threadID == "" || state.AnswerText == "" {
		return
	}
	var meta map[string]interface{}
	if state.Decision != nil {
		meta = map[string]interface{}{"kind": string(state.Decision.Kind)}
	}
	s.appendAsync(threadID, memory.NewMessage(memory.RoleAssistant, state.AnswerText, meta))
}

// appendAsync writes one memory turn in the background with its own
// short deadline. The store already logs and swallows failures.
func (s *Server) appendAsync(threadID string, msg memory.Message) {
	s.memoryWrites.Add(1)
	go func() {
		defer s.memoryWrites.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.agent.memory.Append(ctx, threadID, msg)
	}()
}
