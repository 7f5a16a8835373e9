// Package intent classifies incoming questions into routing
// decisions. A deterministic keyword stage handles the common cases
// without LLM cost; only questions with no recognizable signal fall
// through to the model.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/dates"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// ambiguityMaxLen is the length below which a question with
// back-references and no chat context counts as ambiguous.
const ambiguityMaxLen = 30

type conversationalPattern struct {
	re  *regexp.Regexp
	key string
}

var conversationalPatterns = []conversationalPattern{
	{regexp.MustCompile(`^(hola|hey|buenas|buenos dias|buenas tardes|buenas noches|saludos)`), "greeting"},
	{regexp.MustCompile(`^(gracias|muchas gracias|thanks|ok|perfecto|genial|excelente)`), "thanks"},
	{regexp.MustCompile(`(que puedes hacer|que sabes hacer|ayuda|help|como funciona)`), "help"},
	{regexp.MustCompile(`(quien eres|que eres|como te llamas)`), "identity"},
}

// directResponses are the canned conversational replies.
var directResponses = map[string]string{
	"greeting": "Hola! Soy tu asistente de datos. Puedo ayudarte con:\n- Ventas y ordenes\n- Inventario y productos\n- Rendimiento del agente AI\n- Casos escalados\n\nQue te gustaria saber?",
	"thanks":   "De nada! Si tienes mas preguntas sobre tus datos, estoy aqui para ayudarte.",
	"help":     "Puedo ayudarte a analizar tus datos de negocio. Prueba preguntas como:\n- Como van las ventas?\n- Mostrame el inventario\n- Productos con stock bajo\n- Como esta el agente AI?\n- Ultimas ordenes",
	"identity": "Soy un asistente de BI potenciado por IA. Analizo tus datos de ventas, inventario y servicio al cliente para darte insights accionables.",
}

// clarificationPrompt asks the user to pick an area when the question
// carries no usable signal.
const clarificationPrompt = "No estoy seguro de que necesitas. Puedo ayudarte con:\n- Ventas y ordenes\n- Inventario y stock\n- Agente AI e interacciones\n- Casos escalados\n\nQue area te interesa?"

var dataKeywords = []string{
	"cuanto", "cuantos", "cuantas", "total", "suma", "cantidad",
	"vendimos", "ventas", "venta", "vendido",
	"ordenes", "orden", "pedidos", "pedido",
	"productos", "producto", "inventario", "stock",
	"escalados", "escalaciones", "casos",
	"agente", "bot", "interacciones",
	"ingresos", "revenue", "facturacion",
	"promedio", "media", "kpi", "metricas",
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	"mes", "semana", "dia", "ano", "trimestre", "periodo",
	"dime", "dame", "decime", "quiero", "necesito", "busco",
}

var dashboardKeywords = []string{
	"mostrame", "muestrame", "muestra", "visualiza",
	"grafico", "graficos", "chart", "charts",
	"dashboard", "panel", "reporte",
	"tendencia", "tendencias", "evolucion",
	"comparar", "comparacion", "versus", "vs",
	"analisis", "analiza", "analizar",
	"insight", "insights", "resumen", "resume", "resumir",
	"reposicion", "reponer", "recomendar",
	"bajo stock", "rotacion", "quiebre", "agotar", "agotando", "faltante",
	"critico", "criticos", "alertas", "alerta",
	"proyeccion", "proyectar", "estimar", "predecir",
	"margen", "ganancia", "beneficio",
	"crecimiento", "temporada",
	"como van", "como estan", "como esta", "que tal", "como vamos",
	"como fue", "como fueron", "como estuvo", "como me fue",
	"situacion", "estado de", "status",
	"ultimos", "ultimas", "recientes", "hoy", "ayer", "actual",
	"este mes", "esta semana", "este ano",
	"cual fue", "cual es",
	"mas vendido", "menos vendido",
	"mejor mes", "peor mes", "mejor dia", "peor dia",
	"que mes", "en que mes", "que producto", "cuales",
	"debo hacer", "deberia", "recomienda", "sugieres",
}

// domainKeywords is an ordered list: inventory before sales because
// "inventario" contains "venta" as a substring and must not classify
// as a sales question.
var domainKeywords = []struct {
	domain   schema.Domain
	keywords []string
}{
	{schema.DomainInventory, []string{"inventario", "stock", "producto", "disponible", "reposicion", "reponer"}},
	{schema.DomainConversations, []string{"agente", "bot", "interaccion", "conversacion", "mensaje", "escalado", "escalacion", "caso", "soporte"}},
	{schema.DomainSales, []string{"venta", "vendido", "vendimos", "orden", "pedido", "factura", "ingreso", "revenue"}},
}

var backReferences = []string{
	"eso", "esto", "aquello", "lo mismo", "the same", "y esto", "y eso", "that",
}

// Classifier produces routing decisions. The LLM client is optional;
// without one, questions with no keyword signal become clarifications.
type Classifier struct {
	llm              ai.Client
	logger           logging.Logger
	clarifyAmbiguous bool
}

// NewClassifier builds a classifier. Pass a nil llm to run
// heuristics-only.
func NewClassifier(llm ai.Client, clarifyAmbiguous bool, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Classifier{llm: llm, logger: logger, clarifyAmbiguous: clarifyAmbiguous}
}

// Input is one classification request.
type Input struct {
	Question    string
	ChatContext string
	// PrevWasClarification suppresses a second clarification in a row;
	// the classifier proceeds with its best guess instead.
	PrevWasClarification bool
}

// Classify maps a question to a routing decision. Stage 1 is
// deterministic; identical inputs always yield identical decisions
// without touching the LLM.
func (c *Classifier) Classify(ctx context.Context, in Input) *schema.RoutingDecision {
	q := dates.Normalize(in.Question)

	for _, p := range conversationalPatterns {
		if p.re.MatchString(q) {
			return &schema.RoutingDecision{
				Kind:         schema.RoutingConversational,
				Domain:       schema.DomainUnknown,
				Confidence:   0.95,
				Rationale:    "matched conversational pattern: " + p.key,
				DirectAnswer: directResponses[p.key],
			}
		}
	}

	if c.clarifyAmbiguous && isAmbiguous(q, in.ChatContext) && !in.PrevWasClarification {
		return &schema.RoutingDecision{
			Kind:         schema.RoutingClarification,
			Domain:       schema.DomainUnknown,
			Confidence:   0.9,
			Rationale:    "short question with back-references and no chat context",
			DirectAnswer: clarificationPrompt,
		}
	}

	needsData := containsAny(q, dataKeywords)
	needsDashboard := containsAny(q, dashboardKeywords)
	if needsDashboard {
		needsData = true
	}
	domain := detectDomain(q)

	switch {
	case needsDashboard:
		return &schema.RoutingDecision{
			Kind:       schema.RoutingDashboard,
			Domain:     domain,
			Confidence: 0.9,
			Rationale:  "dashboard keywords for domain " + string(domain),
		}
	case needsData:
		return &schema.RoutingDecision{
			Kind:       schema.RoutingDataOnly,
			Domain:     domain,
			Confidence: 0.85,
			Rationale:  "data keywords for domain " + string(domain),
		}
	}

	// No keyword signal at all.
	if c.llm != nil {
		if decision := c.classifyWithLLM(ctx, in.Question); decision != nil {
			return decision
		}
	}
	if in.PrevWasClarification {
		return &schema.RoutingDecision{
			Kind:       schema.RoutingDataOnly,
			Domain:     schema.DomainSales,
			Confidence: 0.4,
			Rationale:  "no signal after clarification, proceeding with best guess",
		}
	}
	return &schema.RoutingDecision{
		Kind:         schema.RoutingClarification,
		Domain:       schema.DomainUnknown,
		Confidence:   0.5,
		Rationale:    "no keyword signal and no semantic classification available",
		DirectAnswer: clarificationPrompt,
	}
}

// DetectDomain exposes domain matching for query selection.
func DetectDomain(question string) schema.Domain {
	return detectDomain(dates.Normalize(question))
}

// HasBackReferences reports whether the normalized question leans on a
// previous turn ("eso", "lo mismo").
func HasBackReferences(question string) bool {
	return containsAny(dates.Normalize(question), backReferences)
}

func detectDomain(q string) schema.Domain {
	for _, d := range domainKeywords {
		if containsAny(q, d.keywords) {
			return d.domain
		}
	}
	return schema.DomainSales
}

func isAmbiguous(q, chatContext string) bool {
	return len(q) < ambiguityMaxLen && chatContext == "" && containsAny(q, backReferences)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
