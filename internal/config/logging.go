package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`       // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`  // Master toggle - false = no logging
	JSONFormat bool            `yaml:"json_format"` // JSON lines instead of console format
	Categories map[string]bool `yaml:"categories"`  // Per-category toggles
}
