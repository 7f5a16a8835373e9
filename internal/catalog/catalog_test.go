package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/schema"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	for _, id := range []string{
		"kpi_sales_summary", "ts_sales_by_day", "top_products_by_revenue",
		"kpi_inventory_summary", "stock_reorder_analysis",
		"ai_interactions_summary", "comparison_sales_periods",
	} {
		_, ok := c.Lookup(id)
		assert.True(t, ok, id)
	}
}

func TestCatalogNoDuplicateIDsOrRefs(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	ids := make(map[string]bool)
	refs := make(map[string]bool)
	for _, e := range c.List() {
		assert.False(t, ids[e.ID], "duplicate id %s", e.ID)
		assert.False(t, refs[e.OutputRef], "duplicate ref %s", e.OutputRef)
		ids[e.ID] = true
		refs[e.OutputRef] = true
	}
}

func TestCatalogRejectsDuplicateID(t *testing.T) {
	_, err := NewFromEntries([]*Entry{
		{ID: "a", OutputRef: "kpi.a", OutputKind: schema.OutputKPI, Template: "SELECT 1 AS x"},
		{ID: "a", OutputRef: "kpi.b", OutputKind: schema.OutputKPI, Template: "SELECT 1 AS x"},
	})
	assert.ErrorContains(t, err, "duplicate catalog id")
}

func TestCatalogRejectsDuplicateRef(t *testing.T) {
	_, err := NewFromEntries([]*Entry{
		{ID: "a", OutputRef: "kpi.a", OutputKind: schema.OutputKPI, Template: "SELECT 1 AS x"},
		{ID: "b", OutputRef: "kpi.a", OutputKind: schema.OutputKPI, Template: "SELECT 1 AS x"},
	})
	assert.ErrorContains(t, err, "duplicate output ref")
}

func TestValidateTemplateRejectsWrites(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"delete", "SELECT 1; DELETE FROM ml_orders"},
		{"insert", "INSERT INTO ml_orders VALUES (1)"},
		{"update word boundary", "SELECT 1 WHERE x = 'a' UPDATE ml_items SET y = 1"},
		{"drop", "SELECT * FROM t; DROP TABLE t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromEntries([]*Entry{{
				ID: "bad", OutputRef: "kpi.bad", OutputKind: schema.OutputKPI, Template: tt.sql,
			}})
			assert.Error(t, err)
		})
	}
}

func TestValidateTemplateAllowsColumnNamesWithVerbs(t *testing.T) {
	// "updated_at" contains "update" but not on a word boundary.
	_, err := NewFromEntries([]*Entry{{
		ID: "ok", OutputRef: "kpi.ok", OutputKind: schema.OutputKPI,
		Template: "SELECT updated_at, created_at FROM ml_items",
	}})
	assert.NoError(t, err)
}

func TestValidateTemplateIgnoresPostgresCasts(t *testing.T) {
	// "::numeric" is a cast, not a ":numeric" placeholder.
	_, err := NewFromEntries([]*Entry{{
		ID: "ok", OutputRef: "kpi.ok", OutputKind: schema.OutputKPI,
		Params:   []Param{{Name: "date_from", Type: ParamDate}},
		Template: "SELECT total::numeric / 100 FROM ml_orders WHERE created_at >= :date_from",
	}})
	assert.NoError(t, err)
}

func TestValidateTemplateRejectsUndeclaredParams(t *testing.T) {
	_, err := NewFromEntries([]*Entry{{
		ID: "bad", OutputRef: "kpi.bad", OutputKind: schema.OutputKPI,
		Template: "SELECT 1 WHERE x = :mystery",
	}})
	assert.ErrorContains(t, err, "undeclared param")
}

func TestBuildParamsDefaultsAndOverrides(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	e, _ := c.Lookup("ts_sales_by_day")

	params, dropped, err := BuildParams(e, map[string]interface{}{
		"date_from": "2025-11-01",
		"bogus":     "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-11-01", params["date_from"])
	assert.NotEmpty(t, params["date_to"]) // default applied
	assert.Equal(t, 31, params["limit"])
	assert.Equal(t, []string{"bogus"}, dropped)
}

func TestBuildParamsMissingRequired(t *testing.T) {
	e := &Entry{
		ID: "q", OutputRef: "kpi.q", OutputKind: schema.OutputKPI,
		Params:   []Param{{Name: "date_from", Type: ParamDate, Required: true}},
		Template: "SELECT 1 WHERE x >= :date_from",
	}
	_, _, err := BuildParams(e, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestBuildParamsRejectsBadType(t *testing.T) {
	e := &Entry{
		ID: "q", OutputRef: "kpi.q", OutputKind: schema.OutputKPI,
		Params:   []Param{{Name: "limit", Type: ParamInteger}},
		Template: "SELECT 1 LIMIT :limit",
	}
	_, _, err := BuildParams(e, map[string]interface{}{"limit": "not-a-number"})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestBuildParamsAllowedValues(t *testing.T) {
	e := &Entry{
		ID: "q", OutputRef: "kpi.q", OutputKind: schema.OutputKPI,
		Params:   []Param{{Name: "status", Type: ParamString, Allowed: []string{"pending", "resolved"}}},
		Template: "SELECT 1 WHERE status = :status",
	}
	_, _, err := BuildParams(e, map[string]interface{}{"status": "pending"})
	assert.NoError(t, err)

	_, _, err = BuildParams(e, map[string]interface{}{"status": "nope"})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("q1", map[string]interface{}{"date_from": "2025-11-01", "limit": 10})
	b := CacheKey("q1", map[string]interface{}{"limit": 10, "date_from": "2025-11-01"})
	assert.Equal(t, a, b)

	c := CacheKey("q1", map[string]interface{}{"limit": 20, "date_from": "2025-11-01"})
	assert.NotEqual(t, a, c)

	d := CacheKey("q2", map[string]interface{}{"date_from": "2025-11-01", "limit": 10})
	assert.NotEqual(t, a, d)
}

func TestCacheKeyIgnoresOptionalAbsence(t *testing.T) {
	e := &Entry{
		ID: "q", OutputRef: "kpi.q", OutputKind: schema.OutputKPI,
		Params: []Param{
			{Name: "limit", Type: ParamInteger, Default: func() interface{} { return 10 }},
			{Name: "status", Type: ParamString},
		},
		Template: "SELECT 1 LIMIT :limit",
	}
	p1, _, err := BuildParams(e, nil)
	require.NoError(t, err)
	p2, _, err := BuildParams(e, map[string]interface{}{"status": nil})
	require.NoError(t, err)
	assert.Equal(t, CacheKey("q", p1), CacheKey("q", p2))
}

func TestDescriptions(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	desc := c.Descriptions()
	assert.Contains(t, desc["kpi_sales_summary"], "KPIs de ventas")
}
