package analyze

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONResponse parses a JSON response from an LLM, handling
// markdown code blocks. The top level may be an object or an array.
func ParseJSONResponse(text string) any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var result any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}

	return result
}

// UnwrapList coerces a parsed response into a list of objects. Models
// asked for an array sometimes wrap it in an object key (e.g.
// {"results": [...]}) or return a bare object for a single entry.
func UnwrapList(v any) []map[string]any {
	switch val := v.(type) {
	case []any:
		return objectEntries(val)
	case map[string]any:
		for _, inner := range val {
			if arr, ok := inner.([]any); ok {
				return objectEntries(arr)
			}
		}
		return []map[string]any{val}
	default:
		return nil
	}
}

func objectEntries(arr []any) []map[string]any {
	var entries []map[string]any
	for _, e := range arr {
		if obj, ok := e.(map[string]any); ok {
			entries = append(entries, obj)
		}
	}
	return entries
}
