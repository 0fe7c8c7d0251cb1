// Package tools provides the interview tool registry, the text tool-call
// parser, and the router that dispatches parsed calls to handlers.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registered tool names. The model addresses tools by these strings.
const (
	ToolGenerateChallenge = "generate_coding_challenge_from_jd"
	ToolSubmitCode        = "submit_code_for_generated_challenge"
	ToolGetHint           = "get_hint_for_generated_challenge"
	ToolGenerateQuestion  = "generate_interview_question"
	ToolAnalyzeResponse   = "analyze_candidate_response"
)

// ErrMalformedToolCall indicates text that resembled a tool call but failed
// validation. Callers recover by treating the text as a plain reply.
var ErrMalformedToolCall = errors.New("malformed tool call")

// Tool is the contract every interview tool implements. Exec receives the
// normalized argument map and returns a JSON-serializable result map.
type Tool interface {
	Name() string
	Description() string
	Exec(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Registry is a mutex-guarded name-to-tool map.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister registers a tool and panics on conflict. Used at wiring time
// where a duplicate registration is a programming error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns the named tool, or nil if not registered.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// GetAll returns all registered tools sorted by name.
func (r *Registry) GetAll() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Clear removes all registered tools. Intended for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]Tool)
}
