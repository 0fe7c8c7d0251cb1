package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/proto"
)

type stubTool struct {
	name   string
	result map[string]any
	err    error
	panics bool
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Exec(_ context.Context, _ map[string]any) (map[string]any, error) {
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

func TestRouterInvokeSuccess(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&stubTool{name: "echo", result: map[string]any{"status": "success", "value": 42}})
	router := NewRouter(registry, time.Second)

	result := router.Invoke(context.Background(), proto.ToolCall{Name: "echo", ID: "tool_1"})
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 42, result["value"])
}

func TestRouterInvokeUnknownTool(t *testing.T) {
	router := NewRouter(NewRegistry(), time.Second)

	result := router.Invoke(context.Background(), proto.ToolCall{Name: "nope", ID: "tool_1"})
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "unknown tool")
}

func TestRouterInvokeToolError(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&stubTool{name: "bad", err: fmt.Errorf("handler exploded")})
	router := NewRouter(registry, time.Second)

	result := router.Invoke(context.Background(), proto.ToolCall{Name: "bad", ID: "tool_1"})
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "handler exploded")
}

func TestRouterInvokeRecoversPanic(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&stubTool{name: "panicky", panics: true})
	router := NewRouter(registry, time.Second)

	result := router.Invoke(context.Background(), proto.ToolCall{Name: "panicky", ID: "tool_1"})
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "panicked")
}

func TestRegistryDuplicateRejected(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{name: "dup"}))
	assert.Error(t, registry.Register(&stubTool{name: "dup"}))
}

func TestRegistryGetAllSorted(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&stubTool{name: "zeta"})
	registry.MustRegister(&stubTool{name: "alpha"})

	all := registry.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name())
	assert.Equal(t, "zeta", all[1].Name())

	registry.Clear()
	assert.Empty(t, registry.GetAll())
}
