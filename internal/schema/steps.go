package schema

import "time"

// StepStatus is the lifecycle state of one pipeline step.
type StepStatus string

const (
	StepStart    StepStatus = "start"
	StepProgress StepStatus = "progress"
	StepDone     StepStatus = "done"
	StepError    StepStatus = "error"
)

// AgentStep is one entry in the ordered trace of pipeline activity.
// Steps are streamed to the client as data-agent_step events and kept
// on the conversation state for diagnostics.
type AgentStep struct {
	Step    string                 `json:"step"`
	Status  StepStatus             `json:"status"`
	Ts      string                 `json:"ts"`
	Message string                 `json:"message,omitempty"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// NewAgentStep stamps a step with the current UTC time.
func NewAgentStep(step string, status StepStatus) AgentStep {
	return AgentStep{Step: step, Status: status, Ts: time.Now().UTC().Format(time.RFC3339)}
}

// WithMessage attaches a human-readable message to the step.
func (s AgentStep) WithMessage(msg string) AgentStep {
	s.Message = msg
	return s
}

// WithDetail attaches one structured detail field to the step.
func (s AgentStep) WithDetail(key string, value interface{}) AgentStep {
	if s.Detail == nil {
		s.Detail = make(map[string]interface{})
	}
	s.Detail[key] = value
	return s
}
