package schema

// CardFormat controls how a KPI card renders its value.
type CardFormat string

const (
	FormatCurrency CardFormat = "currency"
	FormatNumber   CardFormat = "number"
	FormatPercent  CardFormat = "percent"
)

// KPICard binds one scalar metric to a dashboard card.
type KPICard struct {
	Type     string     `json:"type"`
	Label    string     `json:"label"`
	ValueRef string     `json:"value_ref"`
	Format   CardFormat `json:"format"`
	DeltaRef string     `json:"delta_ref,omitempty"`
	Icon     string     `json:"icon,omitempty"`
}

// NewKPICard builds a card with the fixed discriminator set.
func NewKPICard(label, valueRef string, format CardFormat) KPICard {
	return KPICard{Type: "kpi_card", Label: label, ValueRef: valueRef, Format: format}
}

// ChartType discriminates chart, table and comparison slot entries.
type ChartType string

const (
	ChartLine          ChartType = "line"
	ChartArea          ChartType = "area"
	ChartBar           ChartType = "bar"
	ChartPie           ChartType = "pie"
	ChartTable         ChartType = "table"
	ChartComparisonBar ChartType = "comparison_bar"
	ChartComparisonKPI ChartType = "comparison_kpi"
)

// Chart is one entry of the charts slot. The optional fields are used
// depending on Type: axes for plain charts, Columns/MaxRows for tables,
// the label and metric fields for comparisons.
type Chart struct {
	Type       ChartType `json:"type"`
	Title      string    `json:"title"`
	DatasetRef string    `json:"dataset_ref"`

	XAxis string `json:"x_axis,omitempty"`
	YAxis string `json:"y_axis,omitempty"`
	Color string `json:"color,omitempty"`

	Columns []string `json:"columns,omitempty"`
	MaxRows int      `json:"max_rows,omitempty"`

	CurrentLabel  string   `json:"current_label,omitempty"`
	PreviousLabel string   `json:"previous_label,omitempty"`
	Metrics       []string `json:"metrics,omitempty"`
}

// NarrativeKind orders narrative blocks by intent.
type NarrativeKind string

const (
	NarrativeHeadline NarrativeKind = "headline"
	NarrativeSummary  NarrativeKind = "summary"
	NarrativeInsight  NarrativeKind = "insight"
	NarrativeCallout  NarrativeKind = "callout"
)

// Narrative is one generated text block for the dashboard.
type Narrative struct {
	Kind NarrativeKind `json:"kind"`
	Text string        `json:"text"`
}

// Slots is the fixed-shape content container of a dashboard.
type Slots struct {
	Filters   []map[string]interface{} `json:"filters"`
	Series    []KPICard                `json:"series"`
	Charts    []Chart                  `json:"charts"`
	Narrative []Narrative              `json:"narrative"`
}

// DashboardSpec is what the client renders. Every ValueRef, DeltaRef
// and DatasetRef in it must resolve against the accompanying payload's
// AvailableRefs.
type DashboardSpec struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Conclusion  string `json:"conclusion,omitempty"`
	Slots       Slots  `json:"slots"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// Refs returns every payload reference the dashboard binds to, in slot order.
func (d *DashboardSpec) Refs() []string {
	var refs []string
	for _, card := range d.Slots.Series {
		refs = append(refs, card.ValueRef)
		if card.DeltaRef != "" {
			refs = append(refs, card.DeltaRef)
		}
	}
	for _, chart := range d.Slots.Charts {
		if chart.DatasetRef != "" {
			refs = append(refs, chart.DatasetRef)
		}
	}
	return refs
}
