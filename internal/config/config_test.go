package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
version: "0.1.0"
provider:
  type: openai
  model: gpt-4o
  base_url: https://api.openai.com
  api_key: dummy
  timeout: 30s
agents:
  frontend:
    temperature: 0.2
server:
  addr: ":9090"
`

	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.Provider.Type)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.NotNil(t, cfg.Agents["frontend"].Temperature)
	require.Equal(t, 0.2, *cfg.Agents["frontend"].Temperature)
	require.Equal(t, 1500, cfg.Provider.MaxTokens)
	require.Equal(t, 3, cfg.Client.MaxRetries)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
provider:
  type: mock
  model: test-model
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	t.Setenv("CODECREW_CLIENT_MAX_RETRIES", "5")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Client.MaxRetries)
}

func TestValidateRejectsBadTemperature(t *testing.T) {
	cfg := Config{
		Provider: ProviderConfig{Type: "openai", Model: "gpt-4o", Timeout: 1},
		Client:   ClientConfig{MaxRetries: 3, RetryDelay: 1},
		Server:   ServerConfig{WSPath: "/ws"},
	}
	tooHot := 1.5
	cfg.Agents = map[string]AgentOverride{"frontend": {Temperature: &tooHot}}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "temperature")
}

func TestValidateRejectsUnknownProviderType(t *testing.T) {
	cfg := Config{
		Provider: ProviderConfig{Type: "anthropic", Model: "m", Timeout: 1},
		Client:   ClientConfig{MaxRetries: 3, RetryDelay: 1},
		Server:   ServerConfig{WSPath: "/ws"},
	}

	err := cfg.Validate()
	require.Error(t, err)
}
