package schema

import "strings"

// OutputKind is the shape a catalog query marshals its rows into.
type OutputKind string

const (
	OutputKPI        OutputKind = "kpi"
	OutputTimeSeries OutputKind = "time_series"
	OutputTopItems   OutputKind = "top_items"
	OutputTable      OutputKind = "table"
	OutputComparison OutputKind = "comparison"
)

// Reference prefixes used in output refs and dashboard slot bindings.
const (
	RefPrefixKPI        = "kpi."
	RefPrefixTimeSeries = "ts."
	RefPrefixTopItems   = "top."
	RefPrefixTable      = "table."
	RefComparison       = "comparison"
)

// SeriesPoint is one observation in a time series.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Label string  `json:"label,omitempty"`
}

// TimeSeries is an ordered sequence of dated values.
type TimeSeries struct {
	SeriesName string        `json:"series_name"`
	Points     []SeriesPoint `json:"points"`
}

// TopItem is one entry of a ranking.
type TopItem struct {
	Rank  int                    `json:"rank"`
	ID    string                 `json:"id,omitempty"`
	Title string                 `json:"title"`
	Value float64                `json:"value"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// TopItems is a named ranking over a single metric.
type TopItems struct {
	RankingName string    `json:"ranking_name"`
	Metric      string    `json:"metric"`
	Items       []TopItem `json:"items"`
}

// Table is a named list of rows with an optional column ordering hint.
type Table struct {
	Name    string                   `json:"name"`
	Columns []string                 `json:"columns,omitempty"`
	Rows    []map[string]interface{} `json:"rows"`
}

// ComparisonPeriod holds the metrics of one side of a period comparison.
type ComparisonPeriod struct {
	Label    string             `json:"label"`
	DateFrom string             `json:"date_from"`
	DateTo   string             `json:"date_to"`
	KPIs     map[string]float64 `json:"kpis"`
}

// Comparison holds two periods plus per-metric deltas. DeltaPcts are 0
// when the previous value is 0.
type Comparison struct {
	CurrentPeriod  ComparisonPeriod   `json:"current_period"`
	PreviousPeriod ComparisonPeriod   `json:"previous_period"`
	Deltas         map[string]float64 `json:"deltas,omitempty"`
	DeltaPcts      map[string]float64 `json:"delta_pcts,omitempty"`
}

// DataPayload aggregates every dataset fetched for one request. The
// presentation layer resolves dashboard slot references against
// AvailableRefs, which lists only refs that received data.
type DataPayload struct {
	KPIs          map[string]float64 `json:"kpis,omitempty"`
	TimeSeries    []TimeSeries       `json:"time_series,omitempty"`
	TopItems      []TopItems         `json:"top_items,omitempty"`
	Tables        []Table            `json:"tables,omitempty"`
	Comparison    *Comparison        `json:"comparison,omitempty"`
	AvailableRefs []string           `json:"available_refs"`
}

// Fragment is the typed result of a single catalog query, ready to be
// folded into a DataPayload under the entry's output ref. Exactly one
// of the dataset fields is populated, matching Kind. Empty marks a
// query that ran fine but returned no rows.
type Fragment struct {
	Ref        string             `json:"ref"`
	Kind       OutputKind         `json:"kind"`
	KPIs       map[string]float64 `json:"kpis,omitempty"`
	TimeSeries *TimeSeries        `json:"time_series,omitempty"`
	TopItems   *TopItems          `json:"top_items,omitempty"`
	Table      *Table             `json:"table,omitempty"`
	Comparison *Comparison        `json:"comparison,omitempty"`
	Empty      bool               `json:"empty,omitempty"`
}

// RowCount reports how many source rows back the fragment's dataset:
// one per KPI row, one per point, item or table row, two for a period
// comparison.
func (f *Fragment) RowCount() int {
	if f == nil || f.Empty {
		return 0
	}
	switch f.Kind {
	case OutputKPI:
		if len(f.KPIs) > 0 {
			return 1
		}
	case OutputTimeSeries:
		if f.TimeSeries != nil {
			return len(f.TimeSeries.Points)
		}
	case OutputTopItems:
		if f.TopItems != nil {
			return len(f.TopItems.Items)
		}
	case OutputTable:
		if f.Table != nil {
			return len(f.Table.Rows)
		}
	case OutputComparison:
		if f.Comparison != nil {
			return 2
		}
	}
	return 0
}

// NewDataPayload returns a payload with no datasets and no refs.
func NewDataPayload() *DataPayload {
	return &DataPayload{AvailableRefs: []string{}}
}

// Fold merges a query fragment into the payload and records its ref.
// Empty fragments contribute nothing, KPI fragments additionally
// register one ref per metric so cards can bind individual values.
func (p *DataPayload) Fold(f *Fragment) {
	if f == nil || f.Empty {
		return
	}
	switch f.Kind {
	case OutputKPI:
		if p.KPIs == nil {
			p.KPIs = make(map[string]float64, len(f.KPIs))
		}
		for name, value := range f.KPIs {
			p.KPIs[name] = value
			p.addRef(RefPrefixKPI + name)
		}
	case OutputTimeSeries:
		if f.TimeSeries == nil {
			return
		}
		p.TimeSeries = append(p.TimeSeries, *f.TimeSeries)
	case OutputTopItems:
		if f.TopItems == nil {
			return
		}
		p.TopItems = append(p.TopItems, *f.TopItems)
	case OutputTable:
		if f.Table == nil {
			return
		}
		p.Tables = append(p.Tables, *f.Table)
	case OutputComparison:
		if f.Comparison == nil {
			return
		}
		p.Comparison = f.Comparison
	}
	p.addRef(f.Ref)
}

// HasRef reports whether ref was populated in this payload.
func (p *DataPayload) HasRef(ref string) bool {
	for _, r := range p.AvailableRefs {
		if r == ref {
			return true
		}
	}
	return false
}

// SeriesByRef resolves a "ts." reference to its series.
func (p *DataPayload) SeriesByRef(ref string) (*TimeSeries, bool) {
	name := strings.TrimPrefix(ref, RefPrefixTimeSeries)
	for i := range p.TimeSeries {
		if p.TimeSeries[i].SeriesName == name {
			return &p.TimeSeries[i], true
		}
	}
	return nil, false
}

// TopItemsByRef resolves a "top." reference to its ranking.
func (p *DataPayload) TopItemsByRef(ref string) (*TopItems, bool) {
	name := strings.TrimPrefix(ref, RefPrefixTopItems)
	for i := range p.TopItems {
		if p.TopItems[i].RankingName == name {
			return &p.TopItems[i], true
		}
	}
	return nil, false
}

// TableByRef resolves a "table." reference to its table.
func (p *DataPayload) TableByRef(ref string) (*Table, bool) {
	name := strings.TrimPrefix(ref, RefPrefixTable)
	for i := range p.Tables {
		if p.Tables[i].Name == name {
			return &p.Tables[i], true
		}
	}
	return nil, false
}

func (p *DataPayload) addRef(ref string) {
	if p.HasRef(ref) {
		return
	}
	p.AvailableRefs = append(p.AvailableRefs, ref)
}
