package executor

import (
	"fmt"
	"strings"

	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/schema"
	"github.com/itsneelabh/insights-agent/internal/utils"
)

// Marshal shapes database rows into the entry's declared output kind.
// Zero rows produce an Empty fragment.
func Marshal(entry *catalog.Entry, rows []map[string]interface{}, params map[string]interface{}) (*schema.Fragment, error) {
	frag := &schema.Fragment{Ref: entry.OutputRef, Kind: entry.OutputKind}
	if len(rows) == 0 {
		frag.Empty = true
		return frag, nil
	}

	switch entry.OutputKind {
	case schema.OutputKPI:
		frag.KPIs = marshalKPIs(rows[0])
		frag.Empty = len(frag.KPIs) == 0
	case schema.OutputTimeSeries:
		frag.TimeSeries = marshalTimeSeries(entry, rows)
	case schema.OutputTopItems:
		frag.TopItems = marshalTopItems(entry, rows)
	case schema.OutputTable:
		frag.Table = &schema.Table{
			Name:    strings.TrimPrefix(entry.OutputRef, schema.RefPrefixTable),
			Columns: entry.Columns,
			Rows:    rows,
		}
	case schema.OutputComparison:
		cmp, err := marshalComparison(rows, params)
		if err != nil {
			return nil, err
		}
		frag.Comparison = cmp
	default:
		return nil, fmt.Errorf("entry %q has unknown output kind %q", entry.ID, entry.OutputKind)
	}
	return frag, nil
}

func marshalKPIs(row map[string]interface{}) map[string]float64 {
	kpis := make(map[string]float64, len(row))
	for name, raw := range row {
		if v, ok := utils.ToFloat64(raw); ok {
			kpis[name] = v
		}
	}
	return kpis
}

func marshalTimeSeries(entry *catalog.Entry, rows []map[string]interface{}) *schema.TimeSeries {
	ts := &schema.TimeSeries{
		SeriesName: strings.TrimPrefix(entry.OutputRef, schema.RefPrefixTimeSeries),
		Points:     make([]schema.SeriesPoint, 0, len(rows)),
	}
	for _, row := range rows {
		value, _ := utils.ToFloat64(row["value"])
		ts.Points = append(ts.Points, schema.SeriesPoint{
			Date:  utils.ToString(row["date"]),
			Value: value,
		})
	}
	return ts
}

func marshalTopItems(entry *catalog.Entry, rows []map[string]interface{}) *schema.TopItems {
	top := &schema.TopItems{
		RankingName: strings.TrimPrefix(entry.OutputRef, schema.RefPrefixTopItems),
		Metric:      "revenue",
		Items:       make([]schema.TopItem, 0, len(rows)),
	}
	for i, row := range rows {
		rank, ok := utils.ToInt(row["rank"])
		if !ok {
			rank = i + 1
		}
		value, _ := utils.ToFloat64(row["value"])
		item := schema.TopItem{
			Rank:  rank,
			ID:    utils.ToString(row["id"]),
			Title: utils.ToString(row["title"]),
			Value: value,
		}
		// Columns beyond the ranking shape ride along as extras.
		for k, v := range row {
			switch k {
			case "rank", "id", "title", "value":
			default:
				if item.Extra == nil {
					item.Extra = make(map[string]interface{})
				}
				item.Extra[k] = v
			}
		}
		top.Items = append(top.Items, item)
	}
	return top
}

// marshalComparison expects one row per period, discriminated by the
// "period" column ('current' or 'previous'). A period with no orders
// produces no row, so missing sides default to zeroed KPI maps.
func marshalComparison(rows []map[string]interface{}, params map[string]interface{}) (*schema.Comparison, error) {
	current := schema.ComparisonPeriod{
		DateFrom: utils.ToString(params["date_from"]),
		DateTo:   utils.ToString(params["date_to"]),
		KPIs:     map[string]float64{},
	}
	previous := schema.ComparisonPeriod{
		DateFrom: utils.ToString(params["prev_date_from"]),
		DateTo:   utils.ToString(params["prev_date_to"]),
		KPIs:     map[string]float64{},
	}

	for _, row := range rows {
		period := utils.ToString(row["period"])
		kpis := make(map[string]float64, len(row))
		for name, raw := range row {
			if name == "period" {
				continue
			}
			if v, ok := utils.ToFloat64(raw); ok {
				kpis[name] = v
			}
		}
		switch period {
		case "current":
			current.KPIs = kpis
		case "previous":
			previous.KPIs = kpis
		default:
			return nil, fmt.Errorf("comparison row has unexpected period %q", period)
		}
	}

	// Metrics absent on one side compare against zero.
	for name := range current.KPIs {
		if _, ok := previous.KPIs[name]; !ok {
			previous.KPIs[name] = 0
		}
	}
	for name := range previous.KPIs {
		if _, ok := current.KPIs[name]; !ok {
			current.KPIs[name] = 0
		}
	}

	return schema.BuildComparison(current, previous), nil
}
