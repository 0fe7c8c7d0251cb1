// Package llm defines the model gateway interface used by the interview
// orchestrator, plus client implementations for hosted and local backends.
//
// The gateway is deliberately text-only: no structured function-calling
// primitive is assumed. Tool calls travel as parseable text in the reply and
// are recovered by the parser in pkg/tools.
package llm

import (
	"context"
	"errors"
	"io"
)

// ErrModelUnavailable indicates a timeout or server-side failure from the
// model backend. The orchestrator degrades to a fixed apology reply.
var ErrModelUnavailable = errors.New("model unavailable")

// CompletionRole represents the role of a message in a completion request.
type CompletionRole string

const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user"
	RoleAssistant CompletionRole = "assistant"
)

// CompletionMessage is one message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest is a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is the generated text.
type CompletionResponse struct {
	Content string
}

// StreamChunk is a piece of a streamed completion.
type StreamChunk struct {
	Error   error
	Content string
	Done    bool
}

// Client is the model gateway contract.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// Stream generates a completion as a stream of chunks.
	Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error)
}

// NewCompletionRequest creates a request with default generation parameters.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// NewSystemMessage creates a system-role completion message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role completion message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant-role completion message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}

// StreamToReader converts a stream channel to an io.Reader.
func StreamToReader(stream <-chan StreamChunk) io.Reader {
	pr, pw := io.Pipe()

	go func() {
		defer func() {
			_ = pw.Close()
		}()
		for chunk := range stream {
			if chunk.Error != nil {
				pw.CloseWithError(chunk.Error)
				return
			}
			if _, err := pw.Write([]byte(chunk.Content)); err != nil {
				pw.CloseWithError(err)
				return
			}
			if chunk.Done {
				return
			}
		}
	}()

	return pr
}
