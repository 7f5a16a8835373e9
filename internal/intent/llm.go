package intent

import (
	"context"
	"fmt"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

const classifySystemPrompt = `Eres un clasificador de intenciones para un sistema de analytics de e-commerce.
Analiza la pregunta del usuario y determina:
1. kind: "dashboard" (necesita visualizacion/analisis), "data_only" (solo numeros), "conversational" (saludo/ayuda)
2. domain: "sales" (ventas/ordenes), "inventory" (productos/stock), "conversations" (agente AI/escalados)

Responde SOLO con JSON valido:
{"kind": "dashboard|data_only|conversational", "domain": "sales|inventory|conversations", "reasoning": "explicacion breve"}`

type llmDecision struct {
	Kind      string `json:"kind"`
	Domain    string `json:"domain"`
	Reasoning string `json:"reasoning"`
}

// classifyWithLLM asks the model for a semantic classification. A
// malformed reply gets one repair pass with the parser error; after
// that the caller falls back to its defaults via the nil return.
func (c *Classifier) classifyWithLLM(ctx context.Context, question string) *schema.RoutingDecision {
	parsed, err := c.askModel(ctx, "Pregunta: "+question)
	if err != nil {
		c.logger.Warn("LLM classification failed, retrying with parser error", map[string]interface{}{
			"error": err.Error(),
		})
		parsed, err = c.askModel(ctx, fmt.Sprintf(
			"Pregunta: %s\n\nTu respuesta anterior no era JSON valido (%v). Responde UNICAMENTE con el objeto JSON.",
			question, err,
		))
	}
	if err != nil {
		c.logger.Warn("LLM classification failed after repair, using default", map[string]interface{}{
			"error": err.Error(),
		})
		return &schema.RoutingDecision{
			Kind:       schema.RoutingDataOnly,
			Domain:     schema.DomainSales,
			Confidence: 0.3,
			Rationale:  "semantic classification unavailable, defaulting to data_only",
		}
	}

	domain := parseDomain(parsed.Domain)
	switch parsed.Kind {
	case "conversational":
		return &schema.RoutingDecision{
			Kind:         schema.RoutingConversational,
			Domain:       schema.DomainUnknown,
			Confidence:   0.8,
			Rationale:    "llm: " + parsed.Reasoning,
			DirectAnswer: directResponses["help"],
		}
	case "data_only":
		return &schema.RoutingDecision{
			Kind:       schema.RoutingDataOnly,
			Domain:     domain,
			Confidence: 0.8,
			Rationale:  "llm: " + parsed.Reasoning,
		}
	case "dashboard":
		return &schema.RoutingDecision{
			Kind:       schema.RoutingDashboard,
			Domain:     domain,
			Confidence: 0.8,
			Rationale:  "llm: " + parsed.Reasoning,
		}
	}
	return &schema.RoutingDecision{
		Kind:       schema.RoutingDataOnly,
		Domain:     domain,
		Confidence: 0.3,
		Rationale:  "llm returned unknown kind " + parsed.Kind,
	}
}

func (c *Classifier) askModel(ctx context.Context, prompt string) (*llmDecision, error) {
	resp, err := c.llm.GenerateResponse(ctx, prompt, &ai.Options{
		Temperature:  0.1,
		MaxTokens:    256,
		SystemPrompt: classifySystemPrompt,
	})
	if err != nil {
		return nil, err
	}
	var parsed llmDecision
	if err := ai.ExtractJSON(resp.Content, &parsed); err != nil {
		return nil, err
	}
	if parsed.Kind == "" {
		return nil, fmt.Errorf("missing kind in classification")
	}
	return &parsed, nil
}

func parseDomain(s string) schema.Domain {
	switch s {
	case "sales":
		return schema.DomainSales
	case "inventory":
		return schema.DomainInventory
	case "conversations":
		return schema.DomainConversations
	}
	return schema.DomainSales
}
