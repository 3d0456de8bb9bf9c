package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"medtrack/internal/apperr"
	"medtrack/internal/logging"
)

// =============================================================================
// GOOGLE GENAI COMPLETION CLIENT
// =============================================================================

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional; empty uses the SDK default
	Timeout time.Duration
}

// DefaultGeminiConfig returns the defaults used by medtrack.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   "gemini-2.5-flash",
		Timeout: 60 * time.Second,
	}
}

// GeminiClient implements LLMClient on google.golang.org/genai.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClientWithConfig creates a Gemini client.
func NewGeminiClientWithConfig(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, apperr.Config("gemini client", fmt.Errorf("API key not configured"))
	}
	defaults := DefaultGeminiConfig(config.APIKey)
	if strings.TrimSpace(config.Model) == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, apperr.Config("gemini client", fmt.Errorf("failed to create GenAI client: %w", err))
	}

	return &GeminiClient{
		client:  client,
		model:   config.Model,
		timeout: config.Timeout,
	}, nil
}

// Complete sends a single user prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a user prompt with an optional system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "gemini completion"

	ctx, cancel := withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	var genConfig *genai.GenerateContentConfig
	if strings.TrimSpace(systemPrompt) != "" {
		genConfig = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	logging.APIDebug("[Gemini] GenerateContent model=%s", c.model)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		return "", classifyGenAIError(op, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apperr.Service(op, fmt.Errorf("response has no candidates"))
	}

	text := resp.Text()
	if text == "" {
		return "", apperr.Service(op, fmt.Errorf("response has no text content"))
	}
	return text, nil
}

// classifyGenAIError maps SDK errors onto Service (the API answered) or
// Transport (it could not be reached).
func classifyGenAIError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperr.Service(op, fmt.Errorf("API request failed with status %d: %s", apiErr.Code, apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apperr.Service(op, fmt.Errorf("API request failed with status %d: %s", apiErrPtr.Code, apiErrPtr.Message))
	}
	return transportError(op, err)
}
