// Package perception talks to the external language-model service. Every
// failure leaving this package is an *apperr.Error of kind Transport or
// Service.
package perception

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"medtrack/internal/apperr"
	"medtrack/internal/logging"
)

// LLMClient sends a prompt and returns the raw response text.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// withDefaultTimeout applies timeout when ctx carries no deadline.
func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// transportError classifies a failure to reach the service. Errors that are
// already typed pass through.
func transportError(op string, err error) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperr.Transport(op, fmt.Errorf("timeout: %w", err))
	}
	return apperr.Transport(op, err)
}

// LoggingClient wraps an LLMClient and logs every call with its duration.
type LoggingClient struct {
	underlying LLMClient
	name       string
}

// NewLoggingClient wraps underlying. name labels the log lines.
func NewLoggingClient(underlying LLMClient, name string) *LoggingClient {
	return &LoggingClient{underlying: underlying, name: name}
}

// Complete delegates to the wrapped client.
func (c *LoggingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem delegates to the wrapped client.
func (c *LoggingClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, c.name+" completion")
	resp, err := c.underlying.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	elapsed := timer.StopWithThreshold(10 * time.Second)
	if err != nil {
		logging.APIError("[%s] failed after %v (%s): %v", c.name, elapsed, apperr.KindOf(err), err)
		return "", err
	}
	logging.APIDebug("[%s] system_len=%d user_len=%d response_len=%d", c.name, len(systemPrompt), len(userPrompt), len(resp))
	return resp, nil
}
