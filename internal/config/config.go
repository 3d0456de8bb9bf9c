package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all medtrack configuration.
type Config struct {
	// LLM provider and credentials
	LLM LLMConfig `yaml:"llm"`

	// Profile databases
	Store StoreConfig `yaml:"store"`

	// Background task execution
	Tasks TasksConfig `yaml:"tasks"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Interactive UI
	UI UIConfig `yaml:"ui"`
}

// DefaultHome returns the medtrack data directory: $MEDTRACK_HOME, or
// ~/.medtrack when unset.
func DefaultHome() string {
	if home := os.Getenv("MEDTRACK_HOME"); home != "" {
		return home
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".medtrack"
	}
	return filepath.Join(dir, ".medtrack")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "60s",
		},
		Store: StoreConfig{
			ProfileDir:    filepath.Join(DefaultHome(), "profiles"),
			Driver:        DriverSQLite3,
			BusyTimeoutMs: 5000,
		},
		Tasks: TasksConfig{
			MaxConcurrent: 4,
		},
		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
		UI: UIConfig{
			Theme:         "dark",
			GreetOnStart:  true,
			WatchProfiles: true,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderOpenAI
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}
	if model := os.Getenv("MEDTRACK_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("MEDTRACK_PROFILE_DIR"); dir != "" {
		c.Store.ProfileDir = dir
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if c.Store.ProfileDir == "" {
		return fmt.Errorf("store.profile_dir must be set")
	}
	if !isValidDriver(c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if c.Tasks.MaxConcurrent < 0 {
		return fmt.Errorf("tasks.max_concurrent must be >= 0, got %d", c.Tasks.MaxConcurrent)
	}
	return nil
}
