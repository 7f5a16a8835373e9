package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/itsneelabh/insights-agent/internal/ai"
	"github.com/itsneelabh/insights-agent/internal/catalog"
)

const selectionSystemPrompt = `Eres un selector de consultas para un sistema de analytics.
Dada la pregunta del usuario y el catalogo de consultas disponibles, elige hasta 3 consultas que mejor respondan la pregunta.

Responde SOLO con JSON valido:
{"query_ids": ["id1", "id2"], "params": {}}`

type llmSelection struct {
	QueryIDs []string               `json:"query_ids"`
	Params   map[string]interface{} `json:"params"`
}

// selectWithLLM asks the model to pick catalog queries. The reply is
// validated against the catalog; one repair pass re-asks with the
// validation error, after which the caller falls back to heuristics.
func (a *DataAgent) selectWithLLM(ctx context.Context, in FetchInput) []string {
	prompt := a.selectionPrompt(in)

	ids, err := a.askSelection(ctx, prompt)
	if err != nil {
		a.logger.Warn("LLM query selection failed, retrying with validation error", map[string]interface{}{
			"error": err.Error(),
		})
		ids, err = a.askSelection(ctx, fmt.Sprintf(
			"%s\n\nTu respuesta anterior era invalida (%v). Responde UNICAMENTE con el objeto JSON.",
			prompt, err,
		))
	}
	if err != nil {
		a.logger.Warn("LLM query selection failed after repair, falling back to heuristics", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return ids
}

func (a *DataAgent) selectionPrompt(in FetchInput) string {
	descriptions := a.catalog.Descriptions()
	ids := make([]string, 0, len(descriptions))
	for id := range descriptions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Catalogo de consultas:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, descriptions[id])
	}
	if in.ChatContext != "" {
		b.WriteString("\nContexto de la conversacion:\n")
		b.WriteString(in.ChatContext)
		b.WriteString("\n")
	}
	b.WriteString("\nPregunta: ")
	b.WriteString(in.Question)
	return b.String()
}

func (a *DataAgent) askSelection(ctx context.Context, prompt string) ([]string, error) {
	resp, err := a.llm.GenerateResponse(ctx, prompt, &ai.Options{
		Temperature:  0.1,
		MaxTokens:    256,
		SystemPrompt: selectionSystemPrompt,
	})
	if err != nil {
		return nil, err
	}
	return a.validateSelection(resp.Content)
}

// validateSelection decodes and validates a model reply against the
// catalog and the per-request cap.
func (a *DataAgent) validateSelection(content string) ([]string, error) {
	var parsed llmSelection
	if err := ai.ExtractJSON(content, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.QueryIDs) == 0 {
		return nil, fmt.Errorf("empty query_ids")
	}
	if len(parsed.QueryIDs) > maxQueriesPerRequest {
		return nil, fmt.Errorf("too many query_ids: %d (max %d)", len(parsed.QueryIDs), maxQueriesPerRequest)
	}
	for _, id := range parsed.QueryIDs {
		entry, ok := a.catalog.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownQuery, id)
		}
		if len(parsed.Params) > 0 {
			if _, _, err := catalog.BuildParams(entry, parsed.Params); err != nil {
				return nil, fmt.Errorf("params invalid for %q: %v", id, err)
			}
		}
	}
	return parsed.QueryIDs, nil
}
