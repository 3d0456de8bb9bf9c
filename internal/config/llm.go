package config

import "fmt"

// Supported LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderOpenAI, ProviderGemini}

// LLMConfig configures the language-model client.
// The API key lives here and is passed explicitly into client construction.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"` // openai only
	Timeout  string `yaml:"timeout"`
}

// Validate checks provider and credentials.
func (c LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (run `medtrack config set-key` or set OPENAI_API_KEY / GEMINI_API_KEY)")
	}
	for _, p := range ValidProviders {
		if c.Provider == p {
			return nil
		}
	}
	return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.Provider, ValidProviders)
}

// MaskedKey returns the API key with all but the last four characters hidden.
func (c LLMConfig) MaskedKey() string {
	if len(c.APIKey) <= 4 {
		if c.APIKey == "" {
			return ""
		}
		return "****"
	}
	return "****" + c.APIKey[len(c.APIKey)-4:]
}
