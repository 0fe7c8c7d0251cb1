package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient wraps the Google GenAI client to implement the Client interface.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClient creates a Gemini-backed model gateway. Client construction
// requires a context, so the underlying client is created on first use.
func NewGeminiClient(apiKey, model string) Client {
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
	}
}

func (g *GeminiClient) ensureClient(ctx context.Context) error {
	if g.client != nil {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create Gemini client: %v", ErrModelUnavailable, err)
	}
	g.client = client
	return nil
}

// convertMessagesToGemini maps our roles onto Gemini content, returning the
// concatenated system instruction separately.
func convertMessagesToGemini(messages []CompletionMessage) (contents []*genai.Content, systemInstruction string) {
	var systemParts []string
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return contents, strings.Join(systemParts, "\n\n")
}

// Complete implements the Client interface.
func (g *GeminiClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if err := g.ensureClient(ctx); err != nil {
		return CompletionResponse{}, err
	}

	contents, systemInstruction := convertMessagesToGemini(in.Messages)

	//nolint:gosec // MaxTokens validated at config load, overflow not reachable
	maxTokens := int32(in.MaxTokens)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%w: gemini generate failed: %v", ErrModelUnavailable, err)
	}
	if result == nil {
		return CompletionResponse{}, fmt.Errorf("%w: empty response from Gemini API", ErrModelUnavailable)
	}

	return CompletionResponse{Content: result.Text()}, nil
}

// Stream implements the Client interface by wrapping Complete.
func (g *GeminiClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		resp, err := g.Complete(ctx, in)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Content: resp.Content, Done: true}
	}()
	return ch, nil
}
