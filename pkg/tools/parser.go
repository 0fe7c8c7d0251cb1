package tools

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"interviewer/pkg/proto"
)

// The model communicates tool calls as text: a JSON object or array of
// objects shaped {name, args, id}, usually inside a fenced code block. This
// parser is the protocol boundary; anything it cannot decode is a plain reply.

var (
	jsonFenceRegex    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	genericFenceRegex = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ParseToolCalls extracts tool-call descriptors from model output. Candidate
// payloads are tried in order: a ```json fenced block, any fenced block, then
// the raw text. Returns nil when no candidate decodes, including malformed
// near-JSON; the caller treats the text as a plain reply.
func ParseToolCalls(text string) []proto.ToolCall {
	for _, candidate := range extractCandidates(text) {
		if calls := decodeCalls(candidate); len(calls) > 0 {
			return calls
		}
	}
	return nil
}

func extractCandidates(text string) []string {
	var candidates []string
	if m := jsonFenceRegex.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := genericFenceRegex.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, strings.TrimSpace(text))
	return candidates
}

// decodeCalls parses one candidate payload as either a single descriptor or a
// homogeneous array of descriptors. A partially valid array is rejected whole.
func decodeCalls(payload string) []proto.ToolCall {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	switch payload[0] {
	case '{':
		var raw map[string]any
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil
		}
		call, ok := NormalizeCall(raw)
		if !ok {
			return nil
		}
		return []proto.ToolCall{call}
	case '[':
		var raws []map[string]any
		if err := json.Unmarshal([]byte(payload), &raws); err != nil {
			return nil
		}
		calls := make([]proto.ToolCall, 0, len(raws))
		for _, raw := range raws {
			call, ok := NormalizeCall(raw)
			if !ok {
				return nil
			}
			calls = append(calls, call)
		}
		return calls
	default:
		return nil
	}
}

// NormalizeCall rewrites historical call shapes before dispatch: an
// "arguments" key becomes "args", and a missing id is backfilled. Returns
// false when the descriptor has no usable tool name.
func NormalizeCall(raw map[string]any) (proto.ToolCall, bool) {
	name, _ := raw["name"].(string)
	if name == "" {
		return proto.ToolCall{}, false
	}

	args, _ := raw["args"].(map[string]any)
	if args == nil {
		args, _ = raw["arguments"].(map[string]any)
	}
	if args == nil {
		args = make(map[string]any)
	}

	id, _ := raw["id"].(string)
	if id == "" {
		id = NewCallID()
	}

	return proto.ToolCall{Name: name, Args: args, ID: id}, true
}

// NewCallID generates a tool-call identifier.
func NewCallID() string {
	return "tool_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
