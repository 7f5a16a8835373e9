package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itsneelabh/insights-agent/internal/agents"
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/intent"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// Pipeline wires the stages together. One instance serves all
// requests; per-request data lives on the State.
type Pipeline struct {
	classifier *intent.Classifier
	data       *agents.DataAgent
	presenter  *agents.PresentationBuilder
	maxRetries int
	logger     logging.Logger
	now        func() time.Time
}

// New builds the orchestrator. maxRetries is the retry budget for the
// fetch stage; a failed dashboard build gets a single reduced retry
// regardless.
func New(classifier *intent.Classifier, data *agents.DataAgent, presenter *agents.PresentationBuilder, maxRetries int, logger logging.Logger) *Pipeline {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Pipeline{
		classifier: classifier,
		data:       data,
		presenter:  presenter,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// Run drives the state machine to completion, emitting steps and
// results in order. The returned error reflects a terminal pipeline
// failure; partial results are still emitted before it is returned.
func (p *Pipeline) Run(ctx context.Context, state *State, emit Emitter) error {
	p.classify(ctx, state, emit)

	switch state.Decision.Kind {
	case schema.RoutingConversational, schema.RoutingClarification:
		state.AnswerText = state.Decision.DirectAnswer
		emit.EmitText(state.AnswerText)
		return nil
	}

	if err := p.fetchLoop(ctx, state, emit); err != nil {
		state.Err = err
		return err
	}

	if state.Decision.Kind == schema.RoutingDashboard {
		if err := p.presentStage(ctx, state, emit); err != nil {
			state.Err = err
			return err
		}
	} else {
		state.AnswerText = agents.TextSummary(state.Question, state.DateRange, state.Payload)
	}

	if state.Dashboard != nil {
		emit.EmitDashboard(state.Dashboard)
	}
	emit.EmitPayload(state.Payload)
	emit.EmitText(state.AnswerText)
	return nil
}

// classify runs the intent stage and extracts the request's date
// window from the question text.
func (p *Pipeline) classify(ctx context.Context, state *State, emit Emitter) {
	step := schema.NewAgentStep("classify", schema.StepStart)
	state.addStep(step)
	emit.EmitStep(step)

	state.Decision = p.classifier.Classify(ctx, intent.Input{
		Question:             state.Question,
		ChatContext:          state.ChatContext,
		PrevWasClarification: state.PrevWasClarification,
	})

	now := p.now()
	if current, previous, ok := dates.ExtractComparison(state.Question, now); ok {
		state.DateRange = current
		state.PrevRange = previous
	} else if r, ok := dates.ExtractRange(state.Question, now); ok {
		state.DateRange = r
	} else {
		state.DateRange = dates.DefaultRange(now)
	}

	extracted := schema.NewAgentStep("date_extraction", schema.StepDone).
		WithDetail("date_range", dates.FormatContext(state.DateRange))
	if !state.PrevRange.IsZero() {
		extracted = extracted.WithDetail("previous_range", dates.FormatContext(state.PrevRange))
	}
	state.addStep(extracted)
	emit.EmitStep(extracted)

	done := schema.NewAgentStep("classify", schema.StepDone).
		WithDetail("kind", string(state.Decision.Kind)).
		WithDetail("domain", string(state.Decision.Domain)).
		WithDetail("confidence", state.Decision.Confidence).
		WithDetail("date_range", dates.FormatContext(state.DateRange))
	state.addStep(done)
	emit.EmitStep(done)
}

// fetchLoop runs fetch_data with the reflect/retry loop. A failed
// attempt records its error, drops the first failing query and widens
// the window by one day before trying again.
func (p *Pipeline) fetchLoop(ctx context.Context, state *State, emit Emitter) error {
	state.RetryCount = 0

	for {
		step := schema.NewAgentStep("fetch_data", schema.StepStart).
			WithDetail("attempt", state.RetryCount+1)
		state.addStep(step)
		emit.EmitStep(step)

		res, err := p.data.Fetch(ctx, agents.FetchInput{
			Question:    state.Question,
			DateRange:   state.DateRange,
			PrevRange:   state.PrevRange,
			ChatContext: state.ChatContext,
			Decision:    state.Decision,
			Excluded:    state.ExcludedQueries,
		})
		if res != nil {
			for _, s := range res.Steps {
				state.addStep(s)
				emit.EmitStep(s)
			}
		}
		if err == nil {
			state.Payload = res.Payload
			done := schema.NewAgentStep("fetch_data", schema.StepDone).
				WithDetail("queries", res.QueryIDs).
				WithDetail("available_refs", res.Payload.AvailableRefs)
			state.addStep(done)
			emit.EmitStep(done)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, agents.ErrDataUnavailable) || state.RetryCount >= p.maxRetries {
			fail := schema.NewAgentStep("fetch_data", schema.StepError).
				WithMessage(err.Error())
			state.addStep(fail)
			emit.EmitStep(fail)
			return err
		}
		p.reflect(state, res, err, emit)
	}
}

// reflect records the failure and adjusts the next attempt: the first
// failing query id is excluded and the window start moves back a day.
func (p *Pipeline) reflect(state *State, res *agents.FetchResult, cause error, emit Emitter) {
	state.RetryCount++

	if res != nil {
		for _, id := range res.QueryIDs {
			if _, failed := res.Failures[id]; failed {
				state.ExcludedQueries = append(state.ExcludedQueries, id)
				break
			}
		}
	}
	if !state.DateRange.IsZero() {
		state.DateRange.From = dates.AddDays(state.DateRange.From, -1)
	}

	step := schema.NewAgentStep("reflect", schema.StepProgress).
		WithMessage(cause.Error()).
		WithDetail("retry", state.RetryCount).
		WithDetail("excluded", state.ExcludedQueries)
	state.addStep(step)
	emit.EmitStep(step)

	p.logger.Warn("Reflecting after stage failure", map[string]interface{}{
		"trace_id": state.TraceID,
		"retry":    state.RetryCount,
		"error":    cause.Error(),
	})
}

// presentStage builds the dashboard, allowing one retry with the
// unresolved slots dropped. If the retry fails too, the request
// degrades to a payload-only result instead of failing outright.
func (p *Pipeline) presentStage(ctx context.Context, state *State, emit Emitter) error {
	err := p.present(ctx, state, emit, false)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	step := schema.NewAgentStep("reflect", schema.StepProgress).
		WithMessage(err.Error()).
		WithDetail("strategy", "reduced_slots")
	state.addStep(step)
	emit.EmitStep(step)
	p.logger.Warn("Dashboard build failed, retrying with reduced slots", map[string]interface{}{
		"trace_id": state.TraceID,
		"error":    err.Error(),
	})

	err = p.present(ctx, state, emit, true)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.logger.Error("Dashboard build failed, returning payload-only result", map[string]interface{}{
		"trace_id": state.TraceID,
		"error":    err.Error(),
	})
	state.Dashboard = nil
	state.AnswerText = agents.TextSummary(state.Question, state.DateRange, state.Payload)
	return nil
}

// present builds the dashboard from the fetched payload.
func (p *Pipeline) present(ctx context.Context, state *State, emit Emitter, reduced bool) error {
	step := schema.NewAgentStep("present", schema.StepStart)
	state.addStep(step)
	emit.EmitStep(step)

	spec, err := p.presenter.Build(ctx, agents.BuildInput{
		Question:  state.Question,
		DateRange: state.DateRange,
		Payload:   state.Payload,
		Decision:  state.Decision,
		Reduced:   reduced,
	})
	if err != nil {
		fail := schema.NewAgentStep("present", schema.StepError).
			WithMessage(err.Error())
		state.addStep(fail)
		emit.EmitStep(fail)
		return err
	}

	state.Dashboard = spec
	state.AnswerText = spec.Conclusion
	if state.AnswerText == "" {
		state.AnswerText = fmt.Sprintf("Aqui tienes el resumen de %s.", dates.FormatContext(state.DateRange))
	}
	done := schema.NewAgentStep("present", schema.StepDone).
		WithDetail("cards", len(spec.Slots.Series)).
		WithDetail("charts", len(spec.Slots.Charts))
	state.addStep(done)
	emit.EmitStep(done)
	return nil
}
