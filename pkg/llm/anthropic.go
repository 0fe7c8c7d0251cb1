package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeClient wraps the Anthropic API client to implement the Client interface.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a Claude-backed model gateway.
func NewClaudeClient(apiKey, model string) Client {
	return &ClaudeClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// shapeForAnthropic extracts system messages into the top-level system
// parameter and merges consecutive same-role messages so the sequence
// strictly alternates user/assistant as the API requires.
func shapeForAnthropic(messages []CompletionMessage) (systemPrompt string, alternating []CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []CompletionMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	var merged []CompletionMessage
	var userParts []string
	flushUser := func() {
		if len(userParts) > 0 {
			merged = append(merged, CompletionMessage{Role: RoleUser, Content: strings.Join(userParts, "\n\n")})
			userParts = nil
		}
	}
	for i := range rest {
		msg := &rest[i]
		if msg.Role == RoleAssistant {
			flushUser()
			if len(merged) > 0 && merged[len(merged)-1].Role == RoleAssistant {
				merged[len(merged)-1].Content += "\n\n" + msg.Content
				continue
			}
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	flushUser()

	if merged[0].Role != RoleUser {
		// Leading assistant content without a preceding user turn; give the
		// API a neutral opener.
		merged = append([]CompletionMessage{{Role: RoleUser, Content: "(conversation resumes)"}}, merged...)
	}
	if merged[len(merged)-1].Role != RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}

	return systemPrompt, merged, nil
}

// Complete implements the Client interface.
func (c *ClaudeClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	systemPrompt, alternating, err := shapeForAnthropic(in.Messages)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("message shaping failed: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	for i := range alternating {
		msg := &alternating[i]
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%w: anthropic messages call failed: %v", ErrModelUnavailable, err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w: empty response from Claude API", ErrModelUnavailable)
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return CompletionResponse{Content: text.String()}, nil
}

// Stream implements the Client interface by wrapping Complete.
func (c *ClaudeClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		resp, err := c.Complete(ctx, in)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Content: resp.Content, Done: true}
	}()
	return ch, nil
}
