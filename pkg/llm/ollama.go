package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// OllamaClient wraps the Ollama API client for local model serving.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates an Ollama-backed model gateway.
// hostURL should be the Ollama server URL (e.g., "http://localhost:11434").
func NewOllamaClient(hostURL, model string) Client {
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}
	return &OllamaClient{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

func convertMessagesToOllama(messages []CompletionMessage) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		out = append(out, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// Complete implements the Client interface.
func (o *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: convertMessagesToOllama(in.Messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%w: ollama chat failed: %v", ErrModelUnavailable, err)
	}

	return CompletionResponse{Content: response.Message.Content}, nil
}

// Stream implements the Client interface.
func (o *OllamaClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: convertMessagesToOllama(in.Messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				ch <- StreamChunk{Content: resp.Message.Content}
			}
			if resp.Done {
				ch <- StreamChunk{Done: true}
			}
			return nil
		})
		if err != nil {
			ch <- StreamChunk{Error: fmt.Errorf("%w: ollama stream failed: %v", ErrModelUnavailable, err)}
		}
	}()
	return ch, nil
}
