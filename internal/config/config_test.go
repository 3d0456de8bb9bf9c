package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "MEDTRACK_LLM_MODEL", "MEDTRACK_PROFILE_DIR"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected Model=gpt-4o-mini, got %s", cfg.LLM.Model)
	}
	if cfg.Store.Driver != DriverSQLite3 {
		t.Errorf("expected Driver=sqlite3, got %s", cfg.Store.Driver)
	}
	if cfg.Tasks.MaxConcurrent != 4 {
		t.Errorf("expected MaxConcurrent=4, got %d", cfg.Tasks.MaxConcurrent)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = ProviderGemini
	cfg.LLM.APIKey = "g-test"
	cfg.Store.ProfileDir = "/tmp/profiles"
	cfg.Tasks.MaxConcurrent = 0

	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, loaded.LLM.Provider)
	assert.Equal(t, "g-test", loaded.LLM.APIKey)
	assert.Equal(t, "/tmp/profiles", loaded.Store.ProfileDir)
	assert.Equal(t, 0, loaded.Tasks.MaxConcurrent)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().LLM, cfg.LLM)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: sk-partial\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-partial", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, DriverSQLite3, cfg.Store.Driver)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("OPENAI_API_KEY sets key and provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{LLM: LLMConfig{Provider: ProviderGemini}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY wins over OPENAI_API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	})

	t.Run("model and profile dir", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEDTRACK_LLM_MODEL", "gpt-4o")
		t.Setenv("MEDTRACK_PROFILE_DIR", "/data/profiles")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gpt-4o", cfg.LLM.Model)
		assert.Equal(t, "/data/profiles", cfg.Store.ProfileDir)
	})
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "default has no API key")

	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "zai"
	assert.Error(t, cfg.Validate())
	cfg.LLM.Provider = ProviderOpenAI

	cfg.Store.Driver = "postgres"
	assert.Error(t, cfg.Validate())
	cfg.Store.Driver = DriverSQLite

	cfg.Tasks.MaxConcurrent = -1
	assert.Error(t, cfg.Validate())
}

func TestTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())

	cfg.LLM.Timeout = "bogus"
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())

	cfg.LLM.Timeout = "5s"
	assert.Equal(t, 5*time.Second, cfg.GetLLMTimeout())

	assert.Equal(t, 5*time.Second, StoreConfig{}.BusyTimeout())
	assert.Equal(t, 250*time.Millisecond, StoreConfig{BusyTimeoutMs: 250}.BusyTimeout())
}

func TestMaskedKey(t *testing.T) {
	assert.Equal(t, "", LLMConfig{}.MaskedKey())
	assert.Equal(t, "****", LLMConfig{APIKey: "abc"}.MaskedKey())
	assert.Equal(t, "****wxyz", LLMConfig{APIKey: "sk-abcdwxyz"}.MaskedKey())
}
