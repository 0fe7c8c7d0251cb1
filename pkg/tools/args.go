package tools

import (
	"encoding/json"
	"strings"
)

// Argument maps arrive from parsed model output, so every access is defensive
// about types.

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argStringDefault(args map[string]any, key, def string) string {
	if s := argString(args, key); s != "" {
		return s
	}
	return def
}

func argStringSlice(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func nonEmpty(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// toPlainMap converts a struct to a JSON-plain map so tool results stay
// serializable end to end (cached artifacts, tool messages, persistence).
func toPlainMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// stripCodeFence removes a surrounding markdown code fence, if present.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
