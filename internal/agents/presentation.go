package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// kpiPriority fixes the card ordering; metrics not listed fall back to
// name order.
var kpiPriority = []string{"total_sales", "total_orders", "avg_order_value", "total_units"}

const maxKPICards = 4

// kpiLabels maps metric names to card labels. Unknown metrics get a
// title-cased version of their name.
var kpiLabels = map[string]string{
	"total_sales":        "Ventas totales",
	"total_orders":       "Ordenes",
	"avg_order_value":    "Ticket promedio",
	"total_units":        "Unidades vendidas",
	"total_products":     "Productos",
	"total_stock":        "Stock total",
	"low_stock_count":    "Stock bajo",
	"out_of_stock":       "Sin stock",
	"total_interactions": "Interacciones",
	"escalated_count":    "Escalados",
	"escalation_rate":    "Tasa de escalacion",
	"auto_responded":     "Respuestas automaticas",
	"pending_cases":      "Casos pendientes",
	"resolved_cases":     "Casos resueltos",
}

var currencyMetrics = map[string]bool{
	"total_sales":     true,
	"avg_order_value": true,
}

var percentMetrics = map[string]bool{
	"escalation_rate": true,
}

// PresentationBuilder turns a data payload into a dashboard spec. In
// strict mode a slot binding to a ref missing from the payload is a
// programmer error and fails the build; otherwise the slot is dropped
// and logged.
type PresentationBuilder struct {
	llm             ai.Client
	useLLMNarrative bool
	strict          bool
	logger          logging.Logger
}

// NewPresentationBuilder builds the stage. Strict mode is meant for
// development and tests.
func NewPresentationBuilder(llm ai.Client, useLLMNarrative, strict bool, logger logging.Logger) *PresentationBuilder {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &PresentationBuilder{llm: llm, useLLMNarrative: useLLMNarrative, strict: strict, logger: logger}
}

// BuildInput carries the request context into the builder.
type BuildInput struct {
	Question  string
	DateRange dates.Range
	Payload   *schema.DataPayload
	Decision  *schema.RoutingDecision

	// Reduced retries a failed build with the unresolved slots dropped
	// instead of failing, strict mode included.
	Reduced bool
}

// Build assembles the dashboard: slots deterministically from the
// available refs, narrative via the LLM when enabled or the rule set
// otherwise. The returned spec only references refs present in the
// payload.
func (b *PresentationBuilder) Build(ctx context.Context, in BuildInput) (*schema.DashboardSpec, error) {
	payload := in.Payload
	spec := &schema.DashboardSpec{
		Title:       dashboardTitle(in.Decision),
		Subtitle:    dates.FormatContext(in.DateRange),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Slots: schema.Slots{
			Filters: []map[string]interface{}{},
		},
	}

	spec.Slots.Series = buildKPICards(payload)
	spec.Slots.Charts = buildCharts(payload)

	narrative, conclusion := b.buildNarrative(ctx, in)
	spec.Slots.Narrative = narrative
	spec.Conclusion = conclusion

	if err := b.validateRefs(spec, payload, in.Reduced); err != nil {
		return nil, err
	}
	return spec, nil
}

func dashboardTitle(decision *schema.RoutingDecision) string {
	if decision == nil {
		return "Resumen de negocio"
	}
	switch decision.Domain {
	case schema.DomainInventory:
		return "Inventario"
	case schema.DomainConversations:
		return "Agente AI"
	case schema.DomainSales:
		return "Ventas"
	}
	return "Resumen de negocio"
}

// buildKPICards emits up to four cards, priority metrics first, the
// rest in name order.
func buildKPICards(p *schema.DataPayload) []schema.KPICard {
	if len(p.KPIs) == 0 {
		return nil
	}

	picked := make([]string, 0, maxKPICards)
	seen := map[string]bool{}
	for _, name := range kpiPriority {
		if _, ok := p.KPIs[name]; ok {
			picked = append(picked, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(p.KPIs))
	for name := range p.KPIs {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	picked = append(picked, rest...)
	if len(picked) > maxKPICards {
		picked = picked[:maxKPICards]
	}

	cards := make([]schema.KPICard, 0, len(picked))
	for _, name := range picked {
		cards = append(cards, schema.NewKPICard(kpiLabel(name), schema.RefPrefixKPI+name, kpiFormat(name)))
	}
	return cards
}

func kpiLabel(name string) string {
	if label, ok := kpiLabels[name]; ok {
		return label
	}
	return humanize(name)
}

// humanize turns snake_case metric names into a readable label.
func humanize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func kpiFormat(name string) schema.CardFormat {
	switch {
	case currencyMetrics[name]:
		return schema.FormatCurrency
	case percentMetrics[name]:
		return schema.FormatPercent
	}
	return schema.FormatNumber
}

// buildCharts draws one line chart per time series and one bar chart
// per ranking, aiming for at least two charts when the payload allows.
// A comparison adds its own chart, and each table gets one table slot.
func buildCharts(p *schema.DataPayload) []schema.Chart {
	var charts []schema.Chart

	for i := range p.TimeSeries {
		ts := &p.TimeSeries[i]
		charts = append(charts, schema.Chart{
			Type:       schema.ChartLine,
			Title:      seriesTitle(ts.SeriesName),
			DatasetRef: schema.RefPrefixTimeSeries + ts.SeriesName,
			XAxis:      "date",
			YAxis:      "value",
		})
	}
	for i := range p.TopItems {
		top := &p.TopItems[i]
		charts = append(charts, schema.Chart{
			Type:       schema.ChartBar,
			Title:      rankingTitle(top.RankingName),
			DatasetRef: schema.RefPrefixTopItems + top.RankingName,
			XAxis:      "title",
			YAxis:      "value",
		})
	}

	if p.Comparison != nil {
		metrics := make([]string, 0, len(p.Comparison.CurrentPeriod.KPIs))
		for name := range p.Comparison.CurrentPeriod.KPIs {
			metrics = append(metrics, name)
		}
		sort.Strings(metrics)
		charts = append(charts, schema.Chart{
			Type:          schema.ChartComparisonBar,
			Title:         "Comparacion de periodos",
			DatasetRef:    schema.RefComparison,
			CurrentLabel:  p.Comparison.CurrentPeriod.Label,
			PreviousLabel: p.Comparison.PreviousPeriod.Label,
			Metrics:       metrics,
		})
	}

	for i := range p.Tables {
		table := &p.Tables[i]
		charts = append(charts, schema.Chart{
			Type:       schema.ChartTable,
			Title:      tableTitle(table.Name),
			DatasetRef: schema.RefPrefixTable + table.Name,
			Columns:    table.Columns,
			MaxRows:    10,
		})
	}

	return charts
}

var chartTitles = map[string]string{
	"sales_by_day":              "Ventas por dia",
	"sales_by_month":            "Ventas por mes",
	"products_by_revenue":       "Top productos por facturacion",
	"products_by_sales":         "Top productos por unidades",
	"sales_by_channel":          "Ventas por canal",
	"interactions_by_case_type": "Interacciones por tipo de caso",
	"recent_orders":             "Ultimas ordenes",
	"products_inventory":        "Inventario de productos",
	"products_low_stock":        "Productos con stock bajo",
	"stock_alerts":              "Alertas de stock",
	"stock_reorder_analysis":    "Analisis de reposicion",
	"recent_ai_interactions":    "Interacciones recientes",
	"escalated_cases":           "Casos escalados",
}

func seriesTitle(name string) string  { return chartTitle(name) }
func rankingTitle(name string) string { return chartTitle(name) }
func tableTitle(name string) string   { return chartTitle(name) }

func chartTitle(name string) string {
	if t, ok := chartTitles[name]; ok {
		return t
	}
	return humanize(name)
}

// validateRefs enforces the binding invariant: every ref the dashboard
// emits must be in the payload's available refs. Strict mode fails
// the build unless reduced is set; otherwise offending slots are
// dropped and logged.
func (b *PresentationBuilder) validateRefs(spec *schema.DashboardSpec, payload *schema.DataPayload, reduced bool) error {
	var missing []string

	series := spec.Slots.Series[:0]
	for _, card := range spec.Slots.Series {
		if payload.HasRef(card.ValueRef) && (card.DeltaRef == "" || payload.HasRef(card.DeltaRef)) {
			series = append(series, card)
			continue
		}
		missing = append(missing, card.ValueRef)
	}
	spec.Slots.Series = series

	charts := spec.Slots.Charts[:0]
	for _, chart := range spec.Slots.Charts {
		if chart.DatasetRef == "" || payload.HasRef(chart.DatasetRef) {
			charts = append(charts, chart)
			continue
		}
		missing = append(missing, chart.DatasetRef)
	}
	spec.Slots.Charts = charts

	if len(missing) == 0 {
		return nil
	}
	if b.strict && !reduced {
		return fmt.Errorf("dashboard references missing payload refs: %s", strings.Join(missing, ", "))
	}
	b.logger.Error("Dropping dashboard slots with unresolved refs", map[string]interface{}{
		"refs": missing,
	})
	return nil
}
