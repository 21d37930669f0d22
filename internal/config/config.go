package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version  string                   `mapstructure:"version"`
	Provider ProviderConfig           `mapstructure:"provider"`
	Agents   map[string]AgentOverride `mapstructure:"agents"`
	Client   ClientConfig             `mapstructure:"client"`
	Logging  LoggingConfig            `mapstructure:"logging"`
	Server   ServerConfig             `mapstructure:"server"`
}

// ProviderConfig represents the completion provider backing every persona.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // openai or mock
	Model     string        `mapstructure:"model"`      // chat model name
	BaseURL   string        `mapstructure:"base_url"`   // API base URL override
	APIKey    string        `mapstructure:"api_key"`    // API key (or OPENAI_API_KEY)
	Timeout   time.Duration `mapstructure:"timeout"`    // bound on waiting for the stream to start
	MaxTokens int           `mapstructure:"max_tokens"` // fallback response cap when a persona has none
}

// AgentOverride tunes a single persona without redefining it.
type AgentOverride struct {
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`
}

// ClientConfig describes the chat client's connection behaviour.
type ClientConfig struct {
	URL        string        `mapstructure:"url"`         // ws:// or wss:// endpoint
	MaxRetries int           `mapstructure:"max_retries"` // reconnection attempts before giving up
	RetryDelay time.Duration `mapstructure:"retry_delay"` // delay between reconnection attempts
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	WSPath         string `mapstructure:"ws_path"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: CODECREW_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CODECREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("provider.type", "openai")
	v.SetDefault("provider.model", "gpt-4o")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.max_tokens", 1500)

	v.SetDefault("client.url", "ws://localhost:8080/ws")
	v.SetDefault("client.max_retries", 3)
	v.SetDefault("client.retry_delay", 2*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.metrics_enabled", true)
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider.Type)) {
	case "openai", "mock":
	default:
		return fmt.Errorf("provider.type must be one of openai or mock, got %q", c.Provider.Type)
	}

	if strings.TrimSpace(c.Provider.Model) == "" {
		return errors.New("provider.model must be set")
	}

	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be > 0")
	}

	if c.Provider.MaxTokens < 0 {
		return errors.New("provider.max_tokens cannot be negative")
	}

	for id, o := range c.Agents {
		if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 1) {
			return fmt.Errorf("agents.%s.temperature must be within [0,1]", id)
		}
		if o.MaxTokens < 0 {
			return fmt.Errorf("agents.%s.max_tokens cannot be negative", id)
		}
	}

	if c.Client.MaxRetries < 0 {
		return errors.New("client.max_retries must be >= 0")
	}

	if c.Client.RetryDelay <= 0 {
		return errors.New("client.retry_delay must be > 0")
	}

	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with /, got %q", c.Server.WSPath)
	}

	return nil
}
