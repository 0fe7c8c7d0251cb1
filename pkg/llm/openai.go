package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient wraps the official OpenAI Go client to implement the Client interface.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed model gateway.
func NewOpenAIClient(apiKey, model string) Client {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func convertMessagesToOpenAI(messages []CompletionMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// Complete implements the Client interface via the Chat Completions API.
func (o *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    convertMessagesToOpenAI(in.Messages),
		MaxTokens:   openai.Int(int64(in.MaxTokens)),
		Temperature: openai.Float(float64(in.Temperature)),
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%w: openai chat completion failed: %v", ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w: empty response from OpenAI", ErrModelUnavailable)
	}
	return CompletionResponse{Content: resp.Choices[0].Message.Content}, nil
}

// Stream implements the Client interface using the streaming chat API.
func (o *OpenAIClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    convertMessagesToOpenAI(in.Messages),
		MaxTokens:   openai.Int(int64(in.MaxTokens)),
		Temperature: openai.Float(float64(in.Temperature)),
	})

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				ch <- StreamChunk{Content: chunk.Choices[0].Delta.Content}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- StreamChunk{Error: fmt.Errorf("%w: openai stream failed: %v", ErrModelUnavailable, err)}
			return
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}
