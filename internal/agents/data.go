// Package agents implements the pipeline's two worker stages: the data
// agent that selects and runs catalog queries, and the presentation
// builder that turns the fetched payload into a dashboard
// specification.
package agents

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/executor"
	"github.com/itsneelabh/insights-agent/internal/intent"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// ErrDataUnavailable signals that every selected query failed; the
// orchestrator uses it to drive the reflect/retry loop.
var ErrDataUnavailable = errors.New("data unavailable")

// maxQueriesPerRequest caps the selected set regardless of how the
// selection was made.
const maxQueriesPerRequest = 3

// DataAgent selects catalog queries for a question and executes them
// with bounded concurrency.
type DataAgent struct {
	executor        executor.Executor
	catalog         *catalog.Catalog
	llm             ai.Client
	useLLMSelection bool
	concurrency     int
	logger          logging.Logger
}

// NewDataAgent builds the agent. The llm is only consulted when
// useLLMSelection is on and the question has no clear signal.
func NewDataAgent(exec executor.Executor, cat *catalog.Catalog, llm ai.Client, useLLMSelection bool, concurrency int, logger logging.Logger) *DataAgent {
	if concurrency < 1 {
		concurrency = maxQueriesPerRequest
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &DataAgent{
		executor:        exec,
		catalog:         cat,
		llm:             llm,
		useLLMSelection: useLLMSelection,
		concurrency:     concurrency,
		logger:          logger,
	}
}

// FetchInput carries everything the agent needs for one request.
type FetchInput struct {
	Question    string
	DateRange   dates.Range
	PrevRange   dates.Range
	ChatContext string
	Decision    *schema.RoutingDecision
	// Excluded lists query ids the reflect stage removed after failures.
	Excluded []string
}

// FetchResult is the stage outcome: the folded payload plus per-query
// trace steps.
type FetchResult struct {
	Payload  *schema.DataPayload
	QueryIDs []string
	Steps    []schema.AgentStep
	// Failures maps query id to its error for queries that did not
	// produce data. Partial failure does not fail the stage.
	Failures map[string]error
}

// Fetch selects queries, runs them concurrently and folds results
// into a payload. It returns ErrDataUnavailable only when every
// selected query failed.
func (a *DataAgent) Fetch(ctx context.Context, in FetchInput) (*FetchResult, error) {
	ids := a.selectQueries(ctx, in)
	ids = exclude(ids, in.Excluded)
	if len(ids) == 0 {
		return nil, ErrDataUnavailable
	}

	params := a.buildParams(in)

	type outcome struct {
		id   string
		frag *schema.Fragment
		meta *executor.Meta
		err  error
	}

	var mu sync.Mutex
	outcomes := make(map[string]outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			frag, meta, err := a.executor.Execute(gctx, id, params[id])
			mu.Lock()
			outcomes[id] = outcome{id: id, frag: frag, meta: meta, err: err}
			mu.Unlock()
			// Individual failures are collected, not propagated; a
			// returned error would cancel the sibling queries.
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &FetchResult{
		Payload:  schema.NewDataPayload(),
		QueryIDs: ids,
		Failures: make(map[string]error),
	}
	for _, id := range ids {
		o := outcomes[id]
		step := schema.NewAgentStep("query:"+id, schema.StepDone)
		if o.err != nil {
			result.Failures[id] = o.err
			step = schema.NewAgentStep("query:"+id, schema.StepError).
				WithMessage(o.err.Error())
			a.logger.Warn("Query failed", map[string]interface{}{
				"query_id": id,
				"error":    o.err.Error(),
			})
		} else {
			result.Payload.Fold(o.frag)
			if o.meta != nil {
				step = step.WithDetail("rows", o.meta.RowCount).
					WithDetail("duration_ms", o.meta.DurationMs).
					WithDetail("cached", o.meta.Cached)
			}
		}
		result.Steps = append(result.Steps, step)
	}

	if len(result.Failures) == len(ids) {
		return result, ErrDataUnavailable
	}

	if result.Payload.Comparison != nil {
		labelComparison(result.Payload.Comparison)
	}
	return result, nil
}

// buildParams derives per-query parameters from the extracted date
// ranges. Every query gets the window; the comparison query also gets
// the previous period.
func (a *DataAgent) buildParams(in FetchInput) map[string]map[string]interface{} {
	params := make(map[string]map[string]interface{})
	if in.DateRange.IsZero() {
		return params
	}
	base := map[string]interface{}{
		"date_from": in.DateRange.From,
		"date_to":   in.DateRange.To,
	}
	for _, id := range a.catalog.IDs() {
		entry, _ := a.catalog.Lookup(id)
		if _, ok := entry.Param("date_from"); !ok {
			continue
		}
		p := map[string]interface{}{}
		for k, v := range base {
			p[k] = v
		}
		if _, ok := entry.Param("prev_date_from"); ok && !in.PrevRange.IsZero() {
			p["prev_date_from"] = in.PrevRange.From
			p["prev_date_to"] = in.PrevRange.To
		}
		params[id] = p
	}
	return params
}

// selectQueries applies the heuristic map when the question carries
// clear signal, and falls back to LLM selection (when enabled) for
// questions that lean on previous turns.
func (a *DataAgent) selectQueries(ctx context.Context, in FetchInput) []string {
	ambiguous := intent.HasBackReferences(in.Question)
	if !ambiguous {
		return heuristicSelection(in.Question, in.Decision)
	}
	if a.useLLMSelection && a.llm != nil {
		if ids := a.selectWithLLM(ctx, in); len(ids) > 0 {
			return ids
		}
	}
	return heuristicSelection(in.Question, in.Decision)
}

// heuristicSelection is the domain to query-id map. More specific
// signals are tested first; the result is always capped at three ids.
func heuristicSelection(question string, decision *schema.RoutingDecision) []string {
	q := dates.Normalize(question)
	domain := schema.DomainSales
	if decision != nil && decision.Domain != schema.DomainUnknown {
		domain = decision.Domain
	}

	var ids []string
	switch {
	case containsAny(q, "compara", "comparacion", "versus", " vs "):
		ids = []string{"comparison_sales_periods", "kpi_sales_summary"}
	case containsAny(q, "mas vendido", "top producto", "mejores productos"):
		ids = []string{"kpi_sales_summary", "top_products_by_revenue"}
	case domain == schema.DomainInventory:
		if containsAny(q, "bajo stock", "stock bajo", "agotar", "agotando", "critico", "alerta", "faltante", "quiebre") {
			ids = []string{"products_low_stock", "stock_alerts", "stock_reorder_analysis"}
		} else {
			ids = []string{"kpi_inventory_summary", "products_inventory", "stock_reorder_analysis"}
		}
	case domain == schema.DomainConversations:
		if containsAny(q, "escalad", "caso", "soporte") {
			ids = []string{"escalated_cases", "interactions_by_case_type", "ai_interactions_summary"}
		} else {
			ids = []string{"ai_interactions_summary", "recent_ai_interactions", "escalated_cases"}
		}
	case containsAny(q, "ultimas ordenes", "ultimos pedidos", "ordenes recientes"):
		ids = []string{"kpi_sales_summary", "recent_orders"}
	case containsAny(q, "canal", "canales"):
		ids = []string{"kpi_sales_summary", "sales_by_channel", "ts_sales_by_day"}
	case containsAny(q, "por mes", "mensual", "mensuales"):
		ids = []string{"kpi_sales_summary", "sales_by_month", "top_products_by_revenue"}
	default:
		ids = []string{"kpi_sales_summary", "ts_sales_by_day", "top_products_by_revenue"}
	}

	if len(ids) > maxQueriesPerRequest {
		ids = ids[:maxQueriesPerRequest]
	}
	return ids
}

func labelComparison(c *schema.Comparison) {
	if c.CurrentPeriod.Label == "" {
		c.CurrentPeriod.Label = "Periodo actual"
	}
	if c.PreviousPeriod.Label == "" {
		c.PreviousPeriod.Label = "Periodo anterior"
	}
}

func exclude(ids, excluded []string) []string {
	if len(excluded) == 0 {
		return ids
	}
	out := ids[:0:0]
	for _, id := range ids {
		skip := false
		for _, ex := range excluded {
			if id == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
