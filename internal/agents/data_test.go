package agents

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/executor"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// scriptedExecutor fails the ids in fail and serves demo data for the
// rest.
type scriptedExecutor struct {
	demo *executor.DemoExecutor
	fail map[string]error

	mu       sync.Mutex
	executed []string
}

func newScriptedExecutor(t *testing.T, fail map[string]error) *scriptedExecutor {
	t.Helper()
	cat, err := catalog.New()
	require.NoError(t, err)
	return &scriptedExecutor{demo: executor.NewDemoExecutor(cat), fail: fail}
}

func (s *scriptedExecutor) Execute(ctx context.Context, id string, params map[string]interface{}) (*schema.Fragment, *executor.Meta, error) {
	s.mu.Lock()
	s.executed = append(s.executed, id)
	s.mu.Unlock()
	if err, ok := s.fail[id]; ok {
		return nil, &executor.Meta{QueryID: id}, err
	}
	return s.demo.Execute(ctx, id, params)
}

func newAgentForTest(t *testing.T, exec executor.Executor, llm ai.Client, useLLM bool) *DataAgent {
	t.Helper()
	cat, err := catalog.New()
	require.NoError(t, err)
	return NewDataAgent(exec, cat, llm, useLLM, 3, &logging.NoOpLogger{})
}

func novemberRange() dates.Range {
	return dates.Range{From: "2025-11-01", To: "2025-12-01"}
}

func TestHeuristicSelectionByDomain(t *testing.T) {
	cases := []struct {
		question string
		domain   schema.Domain
		want     []string
	}{
		{
			question: "como van las ventas este mes",
			domain:   schema.DomainSales,
			want:     []string{"kpi_sales_summary", "ts_sales_by_day", "top_products_by_revenue"},
		},
		{
			question: "mostrame el inventario",
			domain:   schema.DomainInventory,
			want:     []string{"kpi_inventory_summary", "products_inventory", "stock_reorder_analysis"},
		},
		{
			question: "productos con stock bajo",
			domain:   schema.DomainInventory,
			want:     []string{"products_low_stock", "stock_alerts", "stock_reorder_analysis"},
		},
		{
			question: "como esta el agente AI",
			domain:   schema.DomainConversations,
			want:     []string{"ai_interactions_summary", "recent_ai_interactions", "escalated_cases"},
		},
		{
			question: "casos escalados de esta semana",
			domain:   schema.DomainConversations,
			want:     []string{"escalated_cases", "interactions_by_case_type", "ai_interactions_summary"},
		},
		{
			question: "cual fue el producto mas vendido",
			domain:   schema.DomainSales,
			want:     []string{"kpi_sales_summary", "top_products_by_revenue"},
		},
		{
			question: "compara noviembre vs octubre",
			domain:   schema.DomainSales,
			want:     []string{"comparison_sales_periods", "kpi_sales_summary"},
		},
	}

	for _, tc := range cases {
		got := heuristicSelection(tc.question, &schema.RoutingDecision{Domain: tc.domain})
		assert.Equal(t, tc.want, got, tc.question)
		assert.LessOrEqual(t, len(got), maxQueriesPerRequest, tc.question)
	}
}

func TestFetchFoldsResults(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	agent := newAgentForTest(t, exec, nil, false)

	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "como van las ventas este mes",
		DateRange: novemberRange(),
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDashboard, Domain: schema.DomainSales},
	})
	require.NoError(t, err)
	assert.Len(t, res.QueryIDs, 3)
	assert.Empty(t, res.Failures)
	assert.NotEmpty(t, res.Payload.KPIs)
	assert.NotEmpty(t, res.Payload.TimeSeries)
	assert.NotEmpty(t, res.Payload.TopItems)
	assert.True(t, res.Payload.HasRef("kpi.total_sales"))
	assert.True(t, res.Payload.HasRef("ts.sales_by_day"))
	assert.Len(t, res.Steps, 3)
}

func TestFetchPartialFailureIsAcceptable(t *testing.T) {
	exec := newScriptedExecutor(t, map[string]error{
		"ts_sales_by_day": executor.ErrUpstreamTimeout,
	})
	agent := newAgentForTest(t, exec, nil, false)

	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "como van las ventas este mes",
		DateRange: novemberRange(),
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDashboard, Domain: schema.DomainSales},
	})
	require.NoError(t, err)
	assert.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures, "ts_sales_by_day")
	assert.NotEmpty(t, res.Payload.KPIs)
	assert.False(t, res.Payload.HasRef("ts.sales_by_day"))

	var errorSteps int
	for _, step := range res.Steps {
		if step.Status == schema.StepError {
			errorSteps++
		}
	}
	assert.Equal(t, 1, errorSteps)
}

func TestFetchAllFailuresIsDataUnavailable(t *testing.T) {
	exec := newScriptedExecutor(t, map[string]error{
		"kpi_sales_summary":       executor.ErrUpstreamError,
		"ts_sales_by_day":         executor.ErrUpstreamTimeout,
		"top_products_by_revenue": executor.ErrUpstreamUnavailable,
	})
	agent := newAgentForTest(t, exec, nil, false)

	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "como van las ventas este mes",
		DateRange: novemberRange(),
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDashboard, Domain: schema.DomainSales},
	})
	assert.ErrorIs(t, err, ErrDataUnavailable)
	require.NotNil(t, res)
	assert.Len(t, res.Failures, 3)
}

func TestFetchExcludesFailedQueries(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	agent := newAgentForTest(t, exec, nil, false)

	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "como van las ventas este mes",
		DateRange: novemberRange(),
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDashboard, Domain: schema.DomainSales},
		Excluded:  []string{"ts_sales_by_day"},
	})
	require.NoError(t, err)
	assert.NotContains(t, res.QueryIDs, "ts_sales_by_day")
	assert.Len(t, res.QueryIDs, 2)
}

func TestFetchComparisonPopulatesDeltas(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	agent := newAgentForTest(t, exec, nil, false)

	prev := dates.Range{From: "2025-10-01", To: "2025-11-01"}
	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "compara noviembre vs octubre",
		DateRange: novemberRange(),
		PrevRange: prev,
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDashboard, Domain: schema.DomainSales},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Payload.Comparison)
	assert.NotEmpty(t, res.Payload.Comparison.Deltas)
	assert.Equal(t, "Periodo actual", res.Payload.Comparison.CurrentPeriod.Label)
	assert.True(t, res.Payload.HasRef(schema.RefComparison))
}

func TestBuildParamsUsesISODateStrings(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	agent := newAgentForTest(t, exec, nil, false)

	params := agent.buildParams(FetchInput{
		DateRange: novemberRange(),
		PrevRange: dates.Range{From: "2025-10-01", To: "2025-11-01"},
	})

	sales := params["kpi_sales_summary"]
	require.NotNil(t, sales)
	assert.Equal(t, "2025-11-01", sales["date_from"])
	assert.Equal(t, "2025-12-01", sales["date_to"])

	comparison := params["comparison_sales_periods"]
	require.NotNil(t, comparison)
	assert.Equal(t, "2025-10-01", comparison["prev_date_from"])
	assert.Equal(t, "2025-11-01", comparison["prev_date_to"])

	assert.Empty(t, agent.buildParams(FetchInput{}))
}

func TestSelectWithLLMValidSelection(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	llm := &ai.MockClient{Responses: []string{
		`{"query_ids":["kpi_sales_summary","recent_orders"],"params":{}}`,
	}}
	agent := newAgentForTest(t, exec, llm, true)

	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "dame lo mismo",
		DateRange: novemberRange(),
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDataOnly, Domain: schema.DomainSales},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"kpi_sales_summary", "recent_orders"}, res.QueryIDs)
	assert.Equal(t, 1, llm.CallCount())
}

func TestSelectWithLLMRepairThenFallback(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	llm := &ai.MockClient{Responses: []string{
		`{"query_ids":["no_such_query"]}`,
		"not json at all",
	}}
	agent := newAgentForTest(t, exec, llm, true)

	res, err := agent.Fetch(context.Background(), FetchInput{
		Question:  "dame lo mismo",
		DateRange: novemberRange(),
		Decision:  &schema.RoutingDecision{Kind: schema.RoutingDataOnly, Domain: schema.DomainSales},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, llm.CallCount())
	// Fallback to the sales heuristic set.
	assert.Equal(t, []string{"kpi_sales_summary", "ts_sales_by_day", "top_products_by_revenue"}, res.QueryIDs)
}

func TestSelectWithLLMRejectsOversizedSet(t *testing.T) {
	exec := newScriptedExecutor(t, nil)
	llm := &ai.MockClient{Err: errors.New("unused")}
	cat, err := catalog.New()
	require.NoError(t, err)
	agent := NewDataAgent(exec, cat, llm, true, 3, &logging.NoOpLogger{})

	_, askErr := agent.validateSelection(`{"query_ids":["kpi_sales_summary","ts_sales_by_day","recent_orders","top_products_by_revenue"]}`)
	assert.Error(t, askErr)
}
