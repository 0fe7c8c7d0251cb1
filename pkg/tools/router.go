package tools

import (
	"context"
	"fmt"
	"time"

	"interviewer/pkg/logx"
	"interviewer/pkg/proto"
)

// Router dispatches parsed tool calls to registered handlers.
type Router struct {
	registry *Registry
	logger   *logx.Logger
	timeout  time.Duration
}

// NewRouter creates a router over the given registry. A non-positive timeout
// disables per-call deadlines.
func NewRouter(registry *Registry, timeout time.Duration) *Router {
	return &Router{
		registry: registry,
		logger:   logx.NewLogger("tool-router"),
		timeout:  timeout,
	}
}

// Invoke executes a tool call and never returns an error: unknown tools,
// handler errors, and panics all become an error-status result map so the
// orchestrator can continue the turn and let the model acknowledge the
// failure.
func (r *Router) Invoke(ctx context.Context, call proto.ToolCall) (result map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool %s panicked: %v", call.Name, rec)
			result = errorResult(fmt.Sprintf("tool %s panicked: %v", call.Name, rec))
		}
	}()

	tool := r.registry.Get(call.Name)
	if tool == nil {
		r.logger.Warn("unknown tool requested: %s", call.Name)
		return errorResult(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Debug("invoking tool %s (call %s)", call.Name, call.ID)
	out, err := tool.Exec(ctx, call.Args)
	if err != nil {
		r.logger.Warn("tool %s failed: %v", call.Name, err)
		return errorResult(err.Error())
	}
	if out == nil {
		out = map[string]any{"status": "success"}
	}
	return out
}

func errorResult(msg string) map[string]any {
	return map[string]any{
		"status":  "error",
		"message": msg,
	}
}
