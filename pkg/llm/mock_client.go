package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient provides a controllable implementation of Client for testing.
type MockClient struct {
	mu            sync.Mutex
	responses     []CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int
	requests      []CompletionRequest
}

// NewMockClient creates a new mock client with predefined responses. Errors
// are consumed positionally before responses, one per call.
func NewMockClient(responses []CompletionResponse, errors []error) *MockClient {
	return &MockClient{
		responses: responses,
		errors:    errors,
	}
}

// Complete returns the next predefined response or error.
func (m *MockClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, in)

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return CompletionResponse{}, err
	}
	if m.errorIndex < len(m.errors) {
		m.errorIndex++
	}

	if m.responseIndex >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// Stream returns a channel that delivers the next predefined response.
func (m *MockClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := m.Complete(ctx, in)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		ch <- StreamChunk{Content: resp.Content, Done: true}
	}()
	return ch, nil
}

// Requests returns a copy of every request the mock has seen, for asserting
// on prompt construction.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
