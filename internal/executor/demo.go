package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// DemoExecutor serves a deterministic sample dataset without touching
// the database. Enabled via DEMO_MODE, it keeps the whole pipeline
// runnable in local development and tests.
type DemoExecutor struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewDemoExecutor builds a demo executor over the given catalog.
func NewDemoExecutor(cat *catalog.Catalog) *DemoExecutor {
	return &DemoExecutor{catalog: cat, now: time.Now}
}

// Execute returns canned data shaped by the entry's output kind. The
// series values follow a fixed sine wave so runs are reproducible.
func (d *DemoExecutor) Execute(ctx context.Context, id string, params map[string]interface{}) (*schema.Fragment, *Meta, error) {
	entry, ok := d.catalog.Lookup(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", catalog.ErrUnknownQuery, id)
	}
	canonical, _, err := catalog.BuildParams(entry, params)
	if err != nil {
		return nil, nil, err
	}

	rows := d.demoRows(entry)
	frag, err := Marshal(entry, rows, canonical)
	if err != nil {
		return nil, nil, err
	}
	return frag, &Meta{QueryID: id, RowCount: len(rows), DurationMs: 1}, nil
}

func (d *DemoExecutor) demoRows(entry *catalog.Entry) []map[string]interface{} {
	switch entry.OutputKind {
	case schema.OutputKPI:
		if entry.ID == "kpi_inventory_summary" {
			return []map[string]interface{}{{
				"total_products": 182, "total_stock": 4310.0,
				"low_stock_count": 14, "out_of_stock": 3,
			}}
		}
		if entry.ID == "ai_interactions_summary" {
			return []map[string]interface{}{{
				"total_interactions": 412, "escalated_count": 37,
				"escalation_rate": 9.0, "auto_responded": 375,
				"pending_cases": 12, "resolved_cases": 25,
			}}
		}
		return []map[string]interface{}{{
			"total_sales": 4567890.50, "total_orders": 234,
			"avg_order_value": 19521.32, "total_units": 567,
		}}
	case schema.OutputTimeSeries:
		today := d.now().UTC()
		rows := make([]map[string]interface{}, 0, 30)
		for i := 0; i < 30; i++ {
			day := today.AddDate(0, 0, -(29 - i))
			value := 120000 + 60000*math.Sin(float64(i)/4)
			rows = append(rows, map[string]interface{}{
				"date":  day.Format("2006-01-02"),
				"value": math.Round(value),
			})
		}
		return rows
	case schema.OutputTopItems:
		return []map[string]interface{}{
			{"rank": 1, "id": "MLA123", "title": "Kit Inyectores Chevrolet", "value": 456780.0, "units_sold": 45},
			{"rank": 2, "id": "MLA456", "title": "Bomba de Agua Ford", "value": 345670.0, "units_sold": 32},
			{"rank": 3, "id": "MLA789", "title": "Filtro de Aceite Universal", "value": 234560.0, "units_sold": 89},
			{"rank": 4, "id": "MLA012", "title": "Bujias NGK x4", "value": 189000.0, "units_sold": 67},
			{"rank": 5, "id": "MLA345", "title": "Correa de Distribucion", "value": 156780.0, "units_sold": 23},
		}
	case schema.OutputTable:
		return []map[string]interface{}{
			{"id": "MLA789", "title": "Filtro de Aceite Universal", "stock": 4, "severity": "critical", "days_cover": 2},
			{"id": "MLA012", "title": "Bujias NGK x4", "stock": 8, "severity": "warning", "days_cover": 6},
		}
	case schema.OutputComparison:
		return []map[string]interface{}{
			{"period": "current", "total_sales": 4567890.50, "total_orders": 234, "avg_order_value": 19521.32, "total_units": 567},
			{"period": "previous", "total_sales": 3890120.00, "total_orders": 198, "avg_order_value": 19647.07, "total_units": 488},
		}
	}
	return nil
}
