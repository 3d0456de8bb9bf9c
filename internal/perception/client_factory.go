package perception

import (
	"context"
	"fmt"

	"medtrack/internal/apperr"
	"medtrack/internal/config"
	"medtrack/internal/logging"
)

// NewClientFromConfig builds the configured provider's client, wrapped in a
// LoggingClient. Credentials come only from cfg.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, apperr.Config("llm client", err)
	}

	timeout := cfg.GetLLMTimeout()

	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		client := NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: timeout,
		})
		logging.API("using OpenAI model=%s key=%s", client.model, cfg.LLM.MaskedKey())
		return NewLoggingClient(client, "OpenAI"), nil

	case config.ProviderGemini:
		model := cfg.LLM.Model
		if model == config.DefaultConfig().LLM.Model {
			// The default model is an OpenAI name.
			model = ""
		}
		client, err := NewGeminiClientWithConfig(ctx, GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   model,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		logging.API("using Gemini model=%s key=%s", client.model, cfg.LLM.MaskedKey())
		return NewLoggingClient(client, "Gemini"), nil

	default:
		return nil, apperr.Config("llm client", fmt.Errorf("unsupported provider: %s", cfg.LLM.Provider))
	}
}
