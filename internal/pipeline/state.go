// Package pipeline orchestrates the classify, fetch and present
// stages as a state machine over one request's conversation state.
package pipeline

import (
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// State is the per-request conversation state. Each request owns its
// state exclusively; nothing here is shared between requests.
type State struct {
	TraceID  string
	ThreadID string
	Question string

	DateRange dates.Range
	PrevRange dates.Range

	ChatContext          string
	PrevWasClarification bool

	Decision  *schema.RoutingDecision
	Payload   *schema.DataPayload
	Dashboard *schema.DashboardSpec

	// AnswerText is the final text block: direct answer, clarification
	// prompt, conclusion or data-only summary.
	AnswerText string

	Steps []schema.AgentStep

	// RetryCount tracks retries of the stage currently running; it
	// resets when a new stage begins.
	RetryCount int

	// ExcludedQueries accumulates query ids dropped by reflect steps.
	ExcludedQueries []string

	Err error
}

// NewState seeds the state for one question.
func NewState(traceID, threadID, question, chatContext string, prevWasClarification bool) *State {
	return &State{
		TraceID:              traceID,
		ThreadID:             threadID,
		Question:             question,
		ChatContext:          chatContext,
		PrevWasClarification: prevWasClarification,
	}
}

func (s *State) addStep(step schema.AgentStep) {
	s.Steps = append(s.Steps, step)
}

// Emitter receives pipeline output in production order. The SSE
// handler streams these as wire events; the non-streaming handler
// accumulates them into a single response.
type Emitter interface {
	EmitStep(step schema.AgentStep)
	// EmitDashboard is always called before EmitPayload on a
	// successful dashboard run.
	EmitDashboard(spec *schema.DashboardSpec)
	EmitPayload(payload *schema.DataPayload)
	EmitText(text string)
}

// NopEmitter discards everything; handy for tests and dry runs.
type NopEmitter struct{}

func (NopEmitter) EmitStep(schema.AgentStep)           {}
func (NopEmitter) EmitDashboard(*schema.DashboardSpec) {}
func (NopEmitter) EmitPayload(*schema.DataPayload)     {}
func (NopEmitter) EmitText(string)                     {}
