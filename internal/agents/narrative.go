package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// Trend thresholds in percent over the series span.
const (
	trendBullishPct       = 10.0
	trendBearishPct       = -10.0
	steepDropPct          = -25.0
	outlierSharePct       = 40.0
	highEscalationRatePct = 20.0
)

const narrativeSystemPrompt = `Eres un analista de negocio. Dado el resumen de datos, genera una narrativa breve en espanol.

Responde SOLO con JSON valido:
{"conclusion": "una oracion que responde la pregunta", "summary": "resumen breve", "insights": ["insight 1", "insight 2"], "recommendation": "recomendacion accionable"}`

type llmNarrative struct {
	Conclusion     string   `json:"conclusion"`
	Summary        string   `json:"summary"`
	Insights       []string `json:"insights"`
	Recommendation string   `json:"recommendation"`
}

// buildNarrative produces the narrative blocks and the conclusion.
// The LLM path is optional; the deterministic rules always work and
// also serve as the fallback when the model misbehaves twice.
func (b *PresentationBuilder) buildNarrative(ctx context.Context, in BuildInput) ([]schema.Narrative, string) {
	if b.useLLMNarrative && b.llm != nil {
		if narrative, conclusion, ok := b.narrativeWithLLM(ctx, in); ok {
			return narrative, conclusion
		}
	}
	return deterministicNarrative(in)
}

// deterministicNarrative synthesizes 2-5 blocks from the payload:
// a headline, trend/top-performer/outlier insights, and callouts for
// threshold crossings.
func deterministicNarrative(in BuildInput) ([]schema.Narrative, string) {
	p := in.Payload
	var blocks []schema.Narrative

	headline := headlineText(p, in.DateRange)
	blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeHeadline, Text: headline})

	if len(p.TimeSeries) > 0 {
		if text := trendInsight(&p.TimeSeries[0]); text != "" {
			blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeInsight, Text: text})
		}
	}
	for i := range p.TopItems {
		top := &p.TopItems[i]
		if text := topPerformerInsight(top); text != "" {
			blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeInsight, Text: text})
		}
		if text := outlierInsight(top); text != "" {
			blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeInsight, Text: text})
		}
	}
	if p.Comparison != nil {
		if text := comparisonInsight(p.Comparison); text != "" {
			blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeInsight, Text: text})
		}
	}
	blocks = append(blocks, callouts(p)...)

	if len(blocks) > 5 {
		blocks = blocks[:5]
	}
	return blocks, headline
}

func headlineText(p *schema.DataPayload, r dates.Range) string {
	period := dates.FormatContext(r)

	if sales, ok := p.KPIs["total_sales"]; ok {
		if orders, ok := p.KPIs["total_orders"]; ok {
			return fmt.Sprintf("Ventas de %s por %s en %.0f ordenes.", period, formatMoney(sales), orders)
		}
		return fmt.Sprintf("Ventas de %s por %s.", period, formatMoney(sales))
	}
	if products, ok := p.KPIs["total_products"]; ok {
		if low, ok := p.KPIs["low_stock_count"]; ok {
			return fmt.Sprintf("Inventario con %.0f productos, %.0f con stock bajo.", products, low)
		}
		return fmt.Sprintf("Inventario con %.0f productos.", products)
	}
	if interactions, ok := p.KPIs["total_interactions"]; ok {
		if escalated, ok := p.KPIs["escalated_count"]; ok {
			return fmt.Sprintf("El agente AI proceso %.0f interacciones en %s, %.0f escaladas.", interactions, period, escalated)
		}
		return fmt.Sprintf("El agente AI proceso %.0f interacciones en %s.", interactions, period)
	}
	if p.Comparison != nil {
		return comparisonInsight(p.Comparison)
	}
	return fmt.Sprintf("Datos de %s.", period)
}

// trendInsight compares the first and last points of the series.
func trendInsight(ts *schema.TimeSeries) string {
	if len(ts.Points) < 2 {
		return ""
	}
	first := ts.Points[0].Value
	last := ts.Points[len(ts.Points)-1].Value
	if first == 0 {
		return ""
	}
	pct := (last - first) / first * 100
	switch {
	case pct > trendBullishPct:
		return fmt.Sprintf("Tendencia alcista: %+.1f%% entre el inicio y el fin del periodo.", pct)
	case pct < trendBearishPct:
		return fmt.Sprintf("Tendencia bajista: %+.1f%% entre el inicio y el fin del periodo.", pct)
	}
	return fmt.Sprintf("Tendencia estable (%+.1f%%) a lo largo del periodo.", pct)
}

func topPerformerInsight(top *schema.TopItems) string {
	if len(top.Items) == 0 {
		return ""
	}
	leader := top.Items[0]
	return fmt.Sprintf("%q lidera %s con %s.", leader.Title, chartTitle(top.RankingName), formatMoney(leader.Value))
}

// outlierInsight flags any single item holding more than 40% of the
// ranking's total.
func outlierInsight(top *schema.TopItems) string {
	var total float64
	for _, item := range top.Items {
		total += item.Value
	}
	if total == 0 {
		return ""
	}
	for _, item := range top.Items {
		share := item.Value / total * 100
		if share > outlierSharePct {
			return fmt.Sprintf("%q concentra el %.0f%% del total, revisa la dependencia de este item.", item.Title, share)
		}
	}
	return ""
}

func comparisonInsight(c *schema.Comparison) string {
	pct, ok := c.DeltaPcts["total_sales"]
	if !ok {
		for _, v := range c.DeltaPcts {
			pct = v
			ok = true
			break
		}
	}
	if !ok {
		return ""
	}
	direction := "crecieron"
	if pct < 0 {
		direction = "cayeron"
	}
	return fmt.Sprintf("Las ventas %s %+.1f%% respecto al periodo anterior.", direction, pct)
}

// callouts emits warnings when a metric crosses its threshold.
func callouts(p *schema.DataPayload) []schema.Narrative {
	var out []schema.Narrative

	if low, ok := p.KPIs["low_stock_count"]; ok && low > 0 {
		out = append(out, schema.Narrative{
			Kind: schema.NarrativeCallout,
			Text: fmt.Sprintf("Atencion: %.0f productos con stock bajo requieren reposicion.", low),
		})
	}
	if oos, ok := p.KPIs["out_of_stock"]; ok && oos > 0 {
		out = append(out, schema.Narrative{
			Kind: schema.NarrativeCallout,
			Text: fmt.Sprintf("Hay %.0f productos sin stock.", oos),
		})
	}
	if rate, ok := p.KPIs["escalation_rate"]; ok && rate > highEscalationRatePct {
		out = append(out, schema.Narrative{
			Kind: schema.NarrativeCallout,
			Text: fmt.Sprintf("La tasa de escalacion (%.1f%%) supera el umbral esperado.", rate),
		})
	}
	for i := range p.TimeSeries {
		ts := &p.TimeSeries[i]
		if len(ts.Points) < 2 || ts.Points[0].Value == 0 {
			continue
		}
		pct := (ts.Points[len(ts.Points)-1].Value - ts.Points[0].Value) / ts.Points[0].Value * 100
		if pct < steepDropPct {
			out = append(out, schema.Narrative{
				Kind: schema.NarrativeCallout,
				Text: fmt.Sprintf("Caida pronunciada de %.1f%% en %s.", pct, chartTitle(ts.SeriesName)),
			})
		}
	}
	return out
}

// narrativeWithLLM delegates narrative generation to the model with
// the usual one-repair-pass policy.
func (b *PresentationBuilder) narrativeWithLLM(ctx context.Context, in BuildInput) ([]schema.Narrative, string, bool) {
	prompt := narrativePrompt(in)

	parsed, err := b.askNarrative(ctx, prompt)
	if err != nil {
		b.logger.Warn("LLM narrative failed, retrying with parser error", map[string]interface{}{
			"error": err.Error(),
		})
		parsed, err = b.askNarrative(ctx, fmt.Sprintf(
			"%s\n\nTu respuesta anterior no era JSON valido (%v). Responde UNICAMENTE con el objeto JSON.",
			prompt, err,
		))
	}
	if err != nil {
		b.logger.Warn("LLM narrative failed after repair, using deterministic rules", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, "", false
	}

	var blocks []schema.Narrative
	if parsed.Summary != "" {
		blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeSummary, Text: parsed.Summary})
	}
	for _, insight := range parsed.Insights {
		if insight != "" {
			blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeInsight, Text: insight})
		}
	}
	if parsed.Recommendation != "" {
		blocks = append(blocks, schema.Narrative{Kind: schema.NarrativeCallout, Text: parsed.Recommendation})
	}
	if len(blocks) == 0 {
		return nil, "", false
	}
	return blocks, parsed.Conclusion, true
}

func (b *PresentationBuilder) askNarrative(ctx context.Context, prompt string) (*llmNarrative, error) {
	resp, err := b.llm.GenerateResponse(ctx, prompt, &ai.Options{
		Temperature:  0.4,
		MaxTokens:    512,
		SystemPrompt: narrativeSystemPrompt,
	})
	if err != nil {
		return nil, err
	}
	var parsed llmNarrative
	if err := ai.ExtractJSON(resp.Content, &parsed); err != nil {
		return nil, err
	}
	if parsed.Conclusion == "" {
		return nil, fmt.Errorf("missing conclusion")
	}
	return &parsed, nil
}

func narrativePrompt(in BuildInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pregunta: %s\nPeriodo: %s\n\nDatos:\n", in.Question, dates.FormatContext(in.DateRange))
	p := in.Payload
	for name, value := range p.KPIs {
		fmt.Fprintf(&b, "- %s: %.2f\n", name, value)
	}
	for i := range p.TimeSeries {
		ts := &p.TimeSeries[i]
		fmt.Fprintf(&b, "- serie %s con %d puntos\n", ts.SeriesName, len(ts.Points))
	}
	for i := range p.TopItems {
		top := &p.TopItems[i]
		if len(top.Items) > 0 {
			fmt.Fprintf(&b, "- ranking %s liderado por %q (%.2f)\n", top.RankingName, top.Items[0].Title, top.Items[0].Value)
		}
	}
	if p.Comparison != nil {
		for name, pct := range p.Comparison.DeltaPcts {
			fmt.Fprintf(&b, "- %s vario %+.1f%% contra el periodo anterior\n", name, pct)
		}
	}
	return b.String()
}

// TextSummary renders a short plain-text answer for data-only
// responses, where no dashboard is produced.
func TextSummary(question string, r dates.Range, p *schema.DataPayload) string {
	blocks, conclusion := deterministicNarrative(BuildInput{
		Question:  question,
		DateRange: r,
		Payload:   p,
	})

	var b strings.Builder
	b.WriteString(conclusion)
	for _, block := range blocks {
		if block.Kind == schema.NarrativeHeadline {
			continue
		}
		b.WriteString("\n")
		b.WriteString(block.Text)
	}
	return b.String()
}
