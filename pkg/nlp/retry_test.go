package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (c *flakyClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.err
	}
	return &types.Response{Content: "ok"}, nil
}

func (c *flakyClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return c.Chat(ctx, messages)
}

func (c *flakyClient) Close() error { return nil }

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	client := &flakyClient{
		failures: 2,
		err:      &types.UpstreamError{Service: "language model", Err: errors.New("503")},
	}
	retry := NewRetryClient(client, fastRetryConfig())

	resp, err := retry.Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("got %q, want ok", resp.Content)
	}
	if client.calls != 3 {
		t.Errorf("got %d calls, want 3", client.calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	client := &flakyClient{
		failures: 10,
		err:      &types.UpstreamError{Service: "language model", Err: errors.New("503")},
	}
	retry := NewRetryClient(client, fastRetryConfig())

	_, err := retry.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.calls != 4 {
		t.Errorf("got %d calls, want 4 (initial + 3 retries)", client.calls)
	}
}

func TestRetryDoesNotRetryDefinitiveErrors(t *testing.T) {
	client := &flakyClient{
		failures: 10,
		err:      &types.ValidationError{Message: "bad input"},
	}
	retry := NewRetryClient(client, fastRetryConfig())

	_, err := retry.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if client.calls != 1 {
		t.Errorf("got %d calls, want 1 (no retry for validation errors)", client.calls)
	}
}
