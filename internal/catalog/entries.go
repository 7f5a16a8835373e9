package catalog

import (
	"time"

	"github.com/itsneelabh/insights-agent/internal/schema"
)

const isoDate = "2006-01-02"

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func daysAgo(n int) func() interface{} {
	return func() interface{} { return today().AddDate(0, 0, -n).Format(isoDate) }
}

func tomorrow() interface{} {
	return today().AddDate(0, 0, 1).Format(isoDate)
}

func limitParam(def int) Param {
	return Param{Name: "limit", Type: ParamInteger, Default: func() interface{} { return def }}
}

func dateWindow(fromDaysAgo int) []Param {
	return []Param{
		{Name: "date_from", Type: ParamDate, Required: true, Default: daysAgo(fromDaysAgo)},
		{Name: "date_to", Type: ParamDate, Required: true, Default: func() interface{} { return tomorrow() }},
	}
}

// defaultEntries is the full allowlist. Descriptions are the text the
// LLM selector sees, so they state what each query answers.
func defaultEntries() []*Entry {
	sales := []*Entry{
		{
			ID:          "kpi_sales_summary",
			Description: "Resumen de KPIs de ventas (total, cantidad, promedio) - Solo ordenes PAID",
			OutputKind:  schema.OutputKPI,
			OutputRef:   "kpi.sales_summary",
			Params:      dateWindow(395),
			Template: `SELECT
    COALESCE(SUM(total_amount), 0) AS total_sales,
    COUNT(*) AS total_orders,
    COALESCE(AVG(total_amount), 0) AS avg_order_value,
    COALESCE(SUM(quantity), 0) AS total_units
FROM ml_orders
WHERE status = 'paid'
  AND date_created >= :date_from
  AND date_created < :date_to`,
		},
		{
			ID:          "ts_sales_by_day",
			Description: "Ventas agrupadas por dia para grafico de linea",
			OutputKind:  schema.OutputTimeSeries,
			OutputRef:   "ts.sales_by_day",
			Params:      append(dateWindow(30), limitParam(31)),
			Template: `SELECT
    DATE(date_created) AS date,
    SUM(total_amount) AS value,
    COUNT(*) AS order_count
FROM ml_orders
WHERE status = 'paid'
  AND date_created >= :date_from
  AND date_created < :date_to
GROUP BY DATE(date_created)
ORDER BY date ASC
LIMIT :limit`,
		},
		{
			ID:          "sales_by_month",
			Description: "Ventas agrupadas por mes para analisis de estacionalidad",
			OutputKind:  schema.OutputTimeSeries,
			OutputRef:   "ts.sales_by_month",
			Params:      append(dateWindow(395), limitParam(13)),
			Template: `SELECT
    TO_CHAR(date_created, 'YYYY-MM') AS date,
    SUM(total_amount) AS value,
    COUNT(*) AS order_count
FROM ml_orders
WHERE status = 'paid'
  AND date_created >= :date_from
  AND date_created < :date_to
GROUP BY TO_CHAR(date_created, 'YYYY-MM')
ORDER BY date ASC
LIMIT :limit`,
		},
		{
			ID:          "top_products_by_revenue",
			Description: "Top productos ordenados por ingresos en un periodo de tiempo",
			OutputKind:  schema.OutputTopItems,
			OutputRef:   "top.products_by_revenue",
			Params:      append(dateWindow(30), limitParam(10)),
			Template: `SELECT
    ROW_NUMBER() OVER (ORDER BY SUM(o.total_amount) DESC) AS rank,
    o.item_id AS id,
    i.title,
    SUM(o.total_amount) AS value,
    SUM(o.quantity) AS units_sold
FROM ml_orders o
LEFT JOIN ml_items i ON o.item_id = i.item_id
WHERE o.status = 'paid'
  AND o.date_created >= :date_from
  AND o.date_created < :date_to
GROUP BY o.item_id, i.title
ORDER BY value DESC
LIMIT :limit`,
		},
		{
			ID:          "top_products_by_sales",
			Description: "Top productos por unidades vendidas",
			OutputKind:  schema.OutputTopItems,
			OutputRef:   "top.products_by_sales",
			Params:      []Param{limitParam(10)},
			Template: `SELECT
    ROW_NUMBER() OVER (ORDER BY total_sold DESC NULLS LAST) AS rank,
    item_id AS id,
    title,
    total_sold AS value,
    total_sold AS units_sold
FROM ml_items
ORDER BY total_sold DESC NULLS LAST
LIMIT :limit`,
		},
		{
			ID:          "sales_by_channel",
			Description: "Ventas agrupadas por canal de envio (fulfillment, cross docking, etc)",
			OutputKind:  schema.OutputTopItems,
			OutputRef:   "top.sales_by_channel",
			Params:      append(dateWindow(30), limitParam(10)),
			Template: `SELECT
    ROW_NUMBER() OVER (ORDER BY SUM(total_amount) DESC) AS rank,
    COALESCE(shipping_type, 'direct') AS id,
    COALESCE(shipping_type, 'direct') AS title,
    SUM(total_amount) AS value,
    COUNT(*) AS order_count
FROM ml_orders
WHERE status = 'paid'
  AND date_created >= :date_from
  AND date_created < :date_to
GROUP BY shipping_type
ORDER BY value DESC
LIMIT :limit`,
		},
		{
			ID:          "recent_orders",
			Description: "Ultimas ordenes para mostrar en tabla",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.recent_orders",
			Params:      []Param{limitParam(20)},
			Columns:     []string{"id", "buyer_nickname", "item_title", "total_amount", "quantity", "status", "shipping_status", "date_created"},
			Template: `SELECT
    order_id AS id,
    buyer_nickname,
    item_title,
    total_amount,
    quantity,
    status,
    shipping_status,
    date_created
FROM ml_orders
ORDER BY date_created DESC
LIMIT :limit`,
		},
		{
			ID:          "comparison_sales_periods",
			Description: "Comparacion de KPIs de ventas entre dos periodos (actual vs anterior)",
			OutputKind:  schema.OutputComparison,
			OutputRef:   "comparison",
			Params: []Param{
				{Name: "date_from", Type: ParamDate, Required: true, Default: daysAgo(30)},
				{Name: "date_to", Type: ParamDate, Required: true, Default: func() interface{} { return tomorrow() }},
				{Name: "prev_date_from", Type: ParamDate, Required: true, Default: daysAgo(60)},
				{Name: "prev_date_to", Type: ParamDate, Required: true, Default: daysAgo(30)},
			},
			Template: `SELECT
    CASE WHEN date_created >= :date_from AND date_created < :date_to
         THEN 'current' ELSE 'previous' END AS period,
    COALESCE(SUM(total_amount), 0) AS total_sales,
    COUNT(*) AS total_orders,
    COALESCE(AVG(total_amount), 0) AS avg_order_value,
    COALESCE(SUM(quantity), 0) AS total_units
FROM ml_orders
WHERE status = 'paid'
  AND ((date_created >= :date_from AND date_created < :date_to)
    OR (date_created >= :prev_date_from AND date_created < :prev_date_to))
GROUP BY period`,
		},
	}

	inventory := []*Entry{
		{
			ID:          "kpi_inventory_summary",
			Description: "Resumen de inventario (productos activos, stock total, bajo stock, agotados)",
			OutputKind:  schema.OutputKPI,
			OutputRef:   "kpi.inventory_summary",
			Template: `SELECT
    COUNT(*) AS total_products,
    COALESCE(SUM(available_quantity), 0) AS total_stock,
    COUNT(*) FILTER (WHERE available_quantity < 10) AS low_stock_count,
    COUNT(*) FILTER (WHERE available_quantity = 0) AS out_of_stock
FROM ml_items
WHERE status = 'active'`,
		},
		{
			ID:          "products_inventory",
			Description: "Inventario de productos con stock y precios",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.products_inventory",
			Params:      []Param{limitParam(50)},
			Columns:     []string{"id", "title", "sku", "price", "stock", "status", "total_sold"},
			Template: `SELECT
    item_id AS id,
    title,
    sku,
    price,
    available_quantity AS stock,
    status,
    total_sold
FROM ml_items
ORDER BY available_quantity DESC
LIMIT :limit`,
		},
		{
			ID:          "products_low_stock",
			Description: "Productos con stock bajo (menos de 10 unidades)",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.products_low_stock",
			Params:      []Param{limitParam(20)},
			Columns:     []string{"id", "title", "sku", "price", "stock", "status"},
			Template: `SELECT
    item_id AS id,
    title,
    sku,
    price,
    available_quantity AS stock,
    status
FROM ml_items
WHERE available_quantity < 10
  AND status = 'active'
ORDER BY available_quantity ASC
LIMIT :limit`,
		},
		{
			ID:          "stock_alerts",
			Description: "Alertas de stock critico y productos a reponer",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.stock_alerts",
			Params:      []Param{limitParam(20)},
			Columns:     []string{"id", "title", "stock", "days_cover", "severity", "reorder_date"},
			Template: `SELECT
    item_id AS id,
    title,
    available_quantity AS stock,
    days_cover,
    severity,
    reorder_date
FROM v_stock_dashboard
WHERE severity IN ('critical', 'warning')
ORDER BY severity DESC, days_cover ASC
LIMIT :limit`,
		},
		{
			ID:          "stock_reorder_analysis",
			Description: "Analisis de reposicion: dias de cobertura y cantidad sugerida por producto",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.stock_reorder_analysis",
			Params:      []Param{limitParam(20)},
			Columns:     []string{"id", "title", "stock", "days_cover", "daily_sales_rate", "suggested_reorder_qty", "reorder_date"},
			Template: `SELECT
    item_id AS id,
    title,
    available_quantity AS stock,
    days_cover,
    daily_sales_rate,
    suggested_reorder_qty,
    reorder_date
FROM v_stock_dashboard
ORDER BY days_cover ASC
LIMIT :limit`,
		},
	}

	conversations := []*Entry{
		{
			ID:          "ai_interactions_summary",
			Description: "Resumen de interacciones del agente AI (total, escaladas, por tipo)",
			OutputKind:  schema.OutputKPI,
			OutputRef:   "kpi.ai_interactions",
			Template: `SELECT
    COALESCE(conv.total_interactions, 0) AS total_interactions,
    COALESCE(esc.escalated_count, 0) AS escalated_count,
    COALESCE(ROUND(CAST(esc.escalated_count AS numeric) / NULLIF(conv.total_interactions, 0) * 100, 1), 0) AS escalation_rate,
    COALESCE(conv.total_interactions, 0) - COALESCE(esc.escalated_count, 0) AS auto_responded,
    COALESCE(esc.pending, 0) AS pending_cases,
    COALESCE(esc.resolved, 0) AS resolved_cases
FROM
    (SELECT COUNT(*) AS total_interactions FROM conversations) conv,
    (SELECT
         COUNT(*) AS escalated_count,
         COUNT(*) FILTER (WHERE status = 'resolved') AS resolved,
         COUNT(*) FILTER (WHERE status = 'pending') AS pending
     FROM escalations) esc`,
		},
		{
			ID:          "recent_ai_interactions",
			Description: "Ultimas interacciones del agente AI con compradores",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.recent_ai_interactions",
			Params:      []Param{limitParam(20)},
			Columns:     []string{"id", "buyer_nickname", "status", "case_type", "last_message_at"},
			Template: `SELECT
    id,
    buyer_nickname,
    status,
    case_type,
    last_message_at
FROM conversations
ORDER BY last_message_at DESC
LIMIT :limit`,
		},
		{
			ID:          "escalated_cases",
			Description: "Casos escalados a humano con motivo",
			OutputKind:  schema.OutputTable,
			OutputRef:   "table.escalated_cases",
			Params: []Param{
				limitParam(20),
				{Name: "status", Type: ParamString, Allowed: []string{"pending", "resolved", "dismissed"}},
			},
			Columns: []string{"id", "buyer_nickname", "reason", "case_type", "status", "priority", "created_at"},
			Template: `SELECT
    id,
    buyer_nickname,
    reason,
    case_type,
    status,
    priority,
    created_at
FROM escalations
WHERE (:status IS NULL OR status = :status)
ORDER BY created_at DESC
LIMIT :limit`,
		},
		{
			ID:          "interactions_by_case_type",
			Description: "Interacciones agrupadas por tipo de caso",
			OutputKind:  schema.OutputTopItems,
			OutputRef:   "top.interactions_by_case_type",
			Params:      []Param{limitParam(10)},
			Template: `SELECT
    ROW_NUMBER() OVER (ORDER BY COUNT(*) DESC) AS rank,
    COALESCE(case_type, 'sin_tipo') AS id,
    INITCAP(REPLACE(COALESCE(case_type, 'sin_tipo'), '_', ' ')) AS title,
    COUNT(*) AS value
FROM escalations
GROUP BY case_type
ORDER BY value DESC
LIMIT :limit`,
		},
	}

	entries := make([]*Entry, 0, len(sales)+len(inventory)+len(conversations))
	entries = append(entries, sales...)
	entries = append(entries, inventory...)
	entries = append(entries, conversations...)
	return entries
}
