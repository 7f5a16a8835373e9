package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls a JSON object out of a model response and decodes
// it into dst. Models wrap JSON in prose and markdown fences more
// often than not, so decoding is tried in three passes: the raw text,
// the text with code fences stripped, and finally the outermost
// brace-delimited span.
func ExtractJSON(content string, dst interface{}) error {
	trimmed := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(trimmed), dst); err == nil {
		return nil
	}

	unfenced := stripCodeFences(trimmed)
	if err := json.Unmarshal([]byte(unfenced), dst); err == nil {
		return nil
	}

	if match := jsonObjectPattern.FindString(unfenced); match != "" {
		if err := json.Unmarshal([]byte(match), dst); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no decodable JSON object in response")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag such as "json" on the fence line.
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
