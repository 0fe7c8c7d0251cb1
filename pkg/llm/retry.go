package llm

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig defines retry behavior for transient model failures.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig provides reasonable defaults for retry behavior.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// RetryableClient wraps a Client with exponential-backoff retry.
type RetryableClient struct {
	client Client
	config RetryConfig
}

// NewRetryableClient creates a retrying wrapper around client.
func NewRetryableClient(client Client, config RetryConfig) *RetryableClient {
	return &RetryableClient{client: client, config: config}
}

// Complete implements Client with retry on transient errors.
func (r *RetryableClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return CompletionResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.client.Complete(ctx, in)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransient(err) {
			return CompletionResponse{}, err
		}
	}

	return CompletionResponse{}, lastErr
}

// Stream implements Client. Streams are not retried mid-flight; only the
// initial connection attempt is retried.
func (r *RetryableClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		ch, err := r.client.Stream(ctx, in)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if !isTransient(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (r *RetryableClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		delay *= 0.5 + rand.Float64()*0.5 //nolint:gosec // Jitter needs no crypto randomness
	}
	return time.Duration(delay)
}

// isTransient classifies errors worth retrying: timeouts, rate limits, and
// 5xx-style upstream failures.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout", "deadline exceeded", "rate limit", "429", "500", "502", "503",
		"overloaded", "connection reset", "connection refused", "temporarily",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
