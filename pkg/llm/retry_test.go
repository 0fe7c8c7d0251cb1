package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	mock := NewMockClient([]CompletionResponse{{Content: "finally"}}, []error{
		errors.New("connection reset by peer"),
		errors.New("429 rate limit exceeded"),
		nil,
	})
	client := NewRetryableClient(mock, fastRetryConfig(3))

	resp, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{
		NewUserMessage("hello"),
	}))
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Content)
	assert.Len(t, mock.Requests(), 3)
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	mock := NewMockClient(nil, []error{
		errors.New("503 service unavailable"),
		errors.New("503 service unavailable"),
		errors.New("503 service unavailable"),
	})
	client := NewRetryableClient(mock, fastRetryConfig(2))

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{
		NewUserMessage("hello"),
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Len(t, mock.Requests(), 3)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	mock := NewMockClient(nil, []error{
		errors.New("invalid api key"),
	})
	client := NewRetryableClient(mock, fastRetryConfig(3))

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{
		NewUserMessage("hello"),
	}))
	require.Error(t, err)
	assert.Len(t, mock.Requests(), 1)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	mock := NewMockClient(nil, []error{
		errors.New("timeout"),
		errors.New("timeout"),
	})
	cfg := fastRetryConfig(3)
	cfg.InitialDelay = time.Second
	client := NewRetryableClient(mock, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, NewCompletionRequest([]CompletionMessage{
		NewUserMessage("hello"),
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err       error
		transient bool
	}{
		{errors.New("request timeout"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("overloaded_error"), true},
		{errors.New("HTTP 500 internal server error"), true},
		{errors.New("invalid request"), false},
		{errors.New("model not found"), false},
		{nil, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.transient, isTransient(tc.err), "err=%v", tc.err)
	}
}
